package usps

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://secure.shippingapis.com/ShippingAPI.dll"

// HTTPAPIClientConfig configures the Web Tools transport.
type HTTPAPIClientConfig struct {
	BaseURL string
	UserID  string
	Timeout time.Duration
}

// HTTPAPIClient talks to USPS Web Tools. Web Tools takes an API name and a
// URL-encoded XML document as query parameters and answers with XML.
type HTTPAPIClient struct {
	config     HTTPAPIClientConfig
	httpClient *http.Client
}

// NewHTTPAPIClient creates a Web Tools transport.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPAPIClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type xmlRateRequest struct {
	XMLName  xml.Name         `xml:"RateV4Request"`
	UserID   string           `xml:"USERID,attr"`
	Revision string           `xml:"Revision"`
	Packages []xmlRatePackage `xml:"Package"`
}

type xmlRatePackage struct {
	ID             string  `xml:"ID,attr"`
	Service        string  `xml:"Service"`
	ZipOrigination string  `xml:"ZipOrigination"`
	ZipDestination string  `xml:"ZipDestination"`
	Pounds         int     `xml:"Pounds"`
	Ounces         float64 `xml:"Ounces"`
	Container      string  `xml:"Container"`
	Width          float64 `xml:"Width"`
	Length         float64 `xml:"Length"`
	Height         float64 `xml:"Height"`
	Girth          float64 `xml:"Girth,omitempty"`
	Value          float64 `xml:"Value,omitempty"`
	Machinable     bool    `xml:"Machinable"`
	ShipDate       string  `xml:"ShipDate,omitempty"`
}

type xmlRateResponse struct {
	XMLName  xml.Name `xml:"RateV4Response"`
	Packages []struct {
		ID       string `xml:"ID,attr"`
		Postages []struct {
			ClassID        string `xml:"CLASSID,attr"`
			MailService    string `xml:"MailService"`
			Rate           string `xml:"Rate"`
			Fees           string `xml:"Fees"`
			CommitmentDate string `xml:"CommitmentDate"`
		} `xml:"Postage"`
		Error *xmlError `xml:"Error"`
	} `xml:"Package"`
}

type xmlVerifyRequest struct {
	XMLName xml.Name         `xml:"AddressValidateRequest"`
	UserID  string           `xml:"USERID,attr"`
	Address xmlVerifyAddress `xml:"Address"`
}

type xmlVerifyAddress struct {
	ID           string `xml:"ID,attr"`
	FirmName     string `xml:"FirmName"`
	Address1     string `xml:"Address1"`
	Address2     string `xml:"Address2"`
	City         string `xml:"City"`
	State        string `xml:"State"`
	Urbanization string `xml:"Urbanization"`
	Zip5         string `xml:"Zip5"`
	Zip4         string `xml:"Zip4"`
}

type xmlVerifyResponse struct {
	XMLName xml.Name `xml:"AddressValidateResponse"`
	Address struct {
		FirmName             string    `xml:"FirmName"`
		Address1             string    `xml:"Address1"`
		Address2             string    `xml:"Address2"`
		City                 string    `xml:"City"`
		State                string    `xml:"State"`
		Urbanization         string    `xml:"Urbanization"`
		Zip5                 string    `xml:"Zip5"`
		Zip4                 string    `xml:"Zip4"`
		ReturnText           string    `xml:"ReturnText"`
		ResidentialIndicator string    `xml:"Business"` // "N" means residential
		Error                *xmlError `xml:"Error"`
	} `xml:"Address"`
}

type xmlLabelRequest struct {
	XMLName        xml.Name `xml:"eVSRequest"`
	UserID         string   `xml:"USERID,attr"`
	FromName       string   `xml:"FromName"`
	FromAddress1   string   `xml:"FromAddress1"`
	FromAddress2   string   `xml:"FromAddress2"`
	FromCity       string   `xml:"FromCity"`
	FromState      string   `xml:"FromState"`
	FromZip5       string   `xml:"FromZip5"`
	ToName         string   `xml:"ToName"`
	ToAddress1     string   `xml:"ToAddress1"`
	ToAddress2     string   `xml:"ToAddress2"`
	ToCity         string   `xml:"ToCity"`
	ToState        string   `xml:"ToState"`
	ToZip5         string   `xml:"ToZip5"`
	WeightInOunces float64  `xml:"WeightInOunces"`
	ServiceType    string   `xml:"ServiceType"`
	Container      string   `xml:"Container"`
	Width          float64  `xml:"Width"`
	Length         float64  `xml:"Length"`
	Height         float64  `xml:"Height"`
	InsuredAmount  float64  `xml:"InsuredAmount,omitempty"`
	ShipDate       string   `xml:"ShipDate,omitempty"`
	ImageType      string   `xml:"ImageType"`
}

type xmlLabelResponse struct {
	XMLName           xml.Name  `xml:"eVSResponse"`
	BarcodeNumber     string    `xml:"BarcodeNumber"`
	TransactionID     string    `xml:"TransactionId"`
	Postage           string    `xml:"Postage"`
	ExtraServicesFees string    `xml:"ExtraServices>ExtraService>Price"`
	LabelImage        []byte    `xml:"LabelImage"`
	Error             *xmlError `xml:"Error"`
}

type xmlError struct {
	Number      string `xml:"Number"`
	Description string `xml:"Description"`
	Source      string `xml:"Source"`
}

func (e *xmlError) toAPIError() *APIError {
	return &APIError{
		Number:      strings.TrimSpace(e.Number),
		Description: strings.TrimSpace(e.Description),
		Source:      strings.TrimSpace(e.Source),
	}
}

// GetRates calls RateV4 for every package in one request.
func (c *HTTPAPIClient) GetRates(ctx context.Context, req *RateRequest) (*RateReply, error) {
	payload := xmlRateRequest{
		UserID:   c.userID(req.UserID),
		Revision: "2",
	}
	for _, p := range req.Packages {
		payload.Packages = append(payload.Packages, xmlRatePackage{
			ID:             p.ID,
			Service:        "ALL",
			ZipOrigination: req.OriginZIP,
			ZipDestination: req.DestinationZIP,
			Pounds:         p.Pounds,
			Ounces:         p.Ounces,
			Container:      p.Container,
			Width:          p.Width,
			Length:         p.Length,
			Height:         p.Height,
			Value:          p.InsuredValue,
			Machinable:     p.Machinable,
			ShipDate:       req.ShipDate,
		})
	}

	var parsed xmlRateResponse
	if err := c.doRequest(ctx, "RateV4", payload, &parsed); err != nil {
		return nil, err
	}

	reply := &RateReply{}
	for _, pkg := range parsed.Packages {
		if pkg.Error != nil {
			return nil, pkg.Error.toAPIError()
		}
		for _, p := range pkg.Postages {
			reply.Rates = append(reply.Rates, MailClassRate{
				ClassID:        p.ClassID,
				MailService:    p.MailService,
				Rate:           parseAmount(p.Rate),
				Fees:           parseAmount(p.Fees),
				CommitmentDate: p.CommitmentDate,
			})
		}
	}
	return reply, nil
}

// VerifyAddress calls the address standardization API.
func (c *HTTPAPIClient) VerifyAddress(ctx context.Context, req *VerifyRequest) (*VerifyReply, error) {
	payload := xmlVerifyRequest{
		UserID: c.userID(req.UserID),
		Address: xmlVerifyAddress{
			ID:           "0",
			FirmName:     req.FirmName,
			Address1:     req.Address1,
			Address2:     req.Address2,
			City:         req.City,
			State:        req.State,
			Urbanization: req.Urbanization,
			Zip5:         req.ZIP5,
		},
	}

	var parsed xmlVerifyResponse
	if err := c.doRequest(ctx, "Verify", payload, &parsed); err != nil {
		return nil, err
	}
	addr := parsed.Address
	if addr.Error != nil {
		// "Address Not Found" is an unmatched result, not a failure.
		if strings.Contains(strings.ToLower(addr.Error.Description), "not found") {
			return &VerifyReply{Matched: false, ReturnText: addr.Error.Description}, nil
		}
		return nil, addr.Error.toAPIError()
	}

	residential := "N"
	if addr.ResidentialIndicator == "N" {
		residential = "Y"
	}
	return &VerifyReply{
		Matched:              true,
		ReturnText:           addr.ReturnText,
		FirmName:             addr.FirmName,
		Address1:             addr.Address1,
		Address2:             addr.Address2,
		City:                 addr.City,
		State:                addr.State,
		ZIP5:                 addr.Zip5,
		ZIP4:                 addr.Zip4,
		Urbanization:         addr.Urbanization,
		ResidentialIndicator: residential,
	}, nil
}

// CreateLabel calls the eVS label API for one package.
func (c *HTTPAPIClient) CreateLabel(ctx context.Context, req *LabelRequest) (*LabelReply, error) {
	ounces := float64(req.Package.Pounds)*16 + req.Package.Ounces
	payload := xmlLabelRequest{
		UserID:         c.userID(req.UserID),
		FromName:       req.Origin.Name,
		FromAddress1:   req.Origin.Address1,
		FromAddress2:   req.Origin.Address2,
		FromCity:       req.Origin.City,
		FromState:      req.Origin.State,
		FromZip5:       req.Origin.ZIP5,
		ToName:         req.Destination.Name,
		ToAddress1:     req.Destination.Address1,
		ToAddress2:     req.Destination.Address2,
		ToCity:         req.Destination.City,
		ToState:        req.Destination.State,
		ToZip5:         req.Destination.ZIP5,
		WeightInOunces: ounces,
		ServiceType:    req.ServiceType,
		Container:      req.Package.Container,
		Width:          req.Package.Width,
		Length:         req.Package.Length,
		Height:         req.Package.Height,
		InsuredAmount:  req.Package.InsuredValue,
		ShipDate:       req.ShipDate,
		ImageType:      "PDF",
	}

	var parsed xmlLabelResponse
	if err := c.doRequest(ctx, "eVS", payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, parsed.Error.toAPIError()
	}
	return &LabelReply{
		TrackingNumber: parsed.BarcodeNumber,
		TransactionID:  parsed.TransactionID,
		Postage:        parseAmount(parsed.Postage),
		Fees:           parseAmount(parsed.ExtraServicesFees),
		LabelImage:     parsed.LabelImage,
	}, nil
}

// doRequest sends one Web Tools call and decodes the XML response into out.
// A top-level <Error> document is parsed into *APIError.
func (c *HTTPAPIClient) doRequest(ctx context.Context, api string, payload any, out any) error {
	body, err := xml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", api, err)
	}

	query := url.Values{}
	query.Set("API", api)
	query.Set("XML", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", api, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending %s request: %w", api, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", api, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Number:      strconv.Itoa(resp.StatusCode),
			Description: http.StatusText(resp.StatusCode),
			Source:      api,
		}
	}

	// Web Tools reports request-level failures as a 200 with an <Error>
	// document in place of the expected response.
	var topErr xmlError
	if err := xml.Unmarshal(raw, &topErr); err == nil && topErr.Number != "" {
		var probe struct {
			XMLName xml.Name
		}
		if xml.Unmarshal(raw, &probe) == nil && probe.XMLName.Local == "Error" {
			return topErr.toAPIError()
		}
	}

	if err := xml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", api, err)
	}
	return nil
}

func (c *HTTPAPIClient) userID(requestUserID string) string {
	if requestUserID != "" {
		return requestUserID
	}
	return c.config.UserID
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

var _ APIClient = (*HTTPAPIClient)(nil)
