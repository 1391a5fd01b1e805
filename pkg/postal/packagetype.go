package postal

// TypeTable maps generic packaging codes to one carrier's codes. Backends
// embed a table and consult it from TranslatePackageType.
type TypeTable struct {
	// Carrier is the owning carrier's identifier.
	Carrier string

	// Generic maps generic codes ("package", "softpak", "envelope") to the
	// carrier's plain packaging types.
	Generic map[string]PackageType

	// Proprietary maps generic codes to the carrier's branded upgrades
	// (e.g. a generic envelope becomes a branded express envelope).
	Proprietary map[string]PackageType
}

// Translate resolves a packaging request against this carrier's table.
//
// A type already proprietary to this carrier passes through unchanged.
// Another carrier's proprietary type, or an unmapped generic code, fails
// with NotSupportedError. With proprietary true, a generic type upgrades to
// the carrier's branded packaging when one is defined; the second return
// reports whether such a conversion happened.
func (t TypeTable) Translate(pt PackageType, proprietary bool) (PackageType, bool, error) {
	if !pt.Generic() {
		if pt.Carrier == t.Carrier {
			return pt, false, nil
		}
		return PackageType{}, false, &NotSupportedError{
			Carrier: t.Carrier,
			What:    "package type " + pt.String() + " belongs to carrier " + pt.Carrier,
		}
	}
	if proprietary {
		if branded, ok := t.Proprietary[pt.Code]; ok {
			return branded, true, nil
		}
	}
	if mapped, ok := t.Generic[pt.Code]; ok {
		return mapped, false, nil
	}
	return PackageType{}, false, &NotSupportedError{
		Carrier: t.Carrier,
		What:    "package type " + pt.Code,
	}
}
