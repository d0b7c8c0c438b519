package metadata

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	jsonDataURIPrefix = "data:application/json;base64,"
	svgDataURIPrefix  = "data:image/svg+xml;base64,"
)

// metadataABI describes
// metadata((string name, string description, (string trait_type, string value)[] attributes) data,
//          (uint32 logCount, uint32 transferCount, uint256 tokenId) svgTexts)
const metadataABI = `[{
	"type": "function",
	"name": "metadata",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "data", "type": "tuple", "components": [
			{"name": "name", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "attributes", "type": "tuple[]", "components": [
				{"name": "trait_type", "type": "string"},
				{"name": "value", "type": "string"}
			]}
		]},
		{"name": "svgTexts", "type": "tuple", "components": [
			{"name": "logCount", "type": "uint32"},
			{"name": "transferCount", "type": "uint32"},
			{"name": "tokenId", "type": "uint256"}
		]}
	],
	"outputs": []
}]`

const methodName = "metadata"

var (
	logCountPattern      = regexp.MustCompile(`Logs/(\d+)\s`)
	transferCountPattern = regexp.MustCompile(`Transfers/(\d+)\s`)
	tokenIDPattern       = regexp.MustCompile(`ID/(\d+)</tspan`)
)

// Attribute is one OpenSea style trait. Numeric values are accepted and kept as text.
type Attribute struct {
	TraitType string `json:"trait_type" abi:"trait_type"`
	Value     string `json:"value" abi:"value"`
}

func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw struct {
		TraitType string          `json:"trait_type"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.TraitType = raw.TraitType

	if len(raw.Value) == 0 || string(raw.Value) == "null" {
		a.Value = ""
		return nil
	}
	if raw.Value[0] == '"' {
		return json.Unmarshal(raw.Value, &a.Value)
	}
	var n json.Number
	if err := json.Unmarshal(raw.Value, &n); err != nil {
		return fmt.Errorf("attribute %q: value must be a string or number", raw.TraitType)
	}
	a.Value = n.String()
	return nil
}

// Metadata is the token metadata document served by tokenURI.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Data is the first tuple argument of the metadata call. Field order follows the ABI.
type Data struct {
	Name        string      `abi:"name"`
	Description string      `abi:"description"`
	Attributes  []Attribute `abi:"attributes"`
}

// SVGTexts are the counters rendered into the token image.
type SVGTexts struct {
	LogCount      uint32   `abi:"logCount"`
	TransferCount uint32   `abi:"transferCount"`
	TokenID       *big.Int `abi:"tokenId"`
}

// Arguments are the decoded arguments of a metadata call.
type Arguments struct {
	Data     Data     `abi:"data"`
	SVGTexts SVGTexts `abi:"svgTexts"`
}

// Encoder ABI-encodes metadata call arguments.
type Encoder struct {
	method abi.Method
	abi    abi.ABI
}

// NewEncoder parses the metadata function ABI.
func NewEncoder() (*Encoder, error) {
	parsed, err := abi.JSON(strings.NewReader(metadataABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata ABI: %w", err)
	}
	method, ok := parsed.Methods[methodName]
	if !ok {
		return nil, fmt.Errorf("metadata ABI has no %s method", methodName)
	}
	return &Encoder{method: method, abi: parsed}, nil
}

// DataOf strips the fields of m that are not part of the call.
func DataOf(m *Metadata) Data {
	attrs := make([]Attribute, len(m.Attributes))
	copy(attrs, m.Attributes)
	if attrs == nil {
		attrs = []Attribute{}
	}
	return Data{Name: m.Name, Description: m.Description, Attributes: attrs}
}

// EncodeArguments returns the ABI encoding of the call arguments without the selector.
func (e *Encoder) EncodeArguments(m *Metadata, texts *SVGTexts) ([]byte, error) {
	if m == nil || texts == nil {
		return nil, fmt.Errorf("metadata and svg texts are required")
	}
	if texts.TokenID == nil {
		return nil, fmt.Errorf("token id is required")
	}
	encoded, err := e.method.Inputs.Pack(DataOf(m), *texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata arguments: %w", err)
	}
	return encoded, nil
}

// EncodeCall returns selector + arguments, ready to be sent as calldata.
func (e *Encoder) EncodeCall(m *Metadata, texts *SVGTexts) ([]byte, error) {
	args, err := e.EncodeArguments(m, texts)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, e.method.ID...), args...), nil
}

// Selector returns the 4 byte function selector.
func (e *Encoder) Selector() []byte {
	return append([]byte{}, e.method.ID...)
}

// DecodeArguments reverses EncodeArguments.
func (e *Encoder) DecodeArguments(encoded []byte) (*Arguments, error) {
	values, err := e.method.Inputs.Unpack(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata arguments: %w", err)
	}
	var out Arguments
	if err := e.method.Inputs.Copy(&out, values); err != nil {
		return nil, fmt.Errorf("failed to copy metadata arguments: %w", err)
	}
	return &out, nil
}

// ParseTokenURI decodes a data:application/json;base64 token URI. A bare
// base64 payload without the prefix is accepted too.
func ParseTokenURI(uri string) (*Metadata, error) {
	raw, err := decodeDataURI(uri, jsonDataURIPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token uri: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &m, nil
}

// DecodeImage returns the SVG document embedded in the metadata image field.
func DecodeImage(m *Metadata) (string, error) {
	if m.Image == "" {
		return "", fmt.Errorf("metadata has no image")
	}
	raw, err := decodeDataURI(m.Image, svgDataURIPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	return string(raw), nil
}

// ExtractSVGTexts reads the "Logs/N", "Transfers/N" and "ID/N" labels from a
// rendered logbook SVG. When a label repeats, the last occurrence wins.
func ExtractSVGTexts(svg string) (*SVGTexts, error) {
	logCount, err := matchUint(logCountPattern, svg, "log count", 32)
	if err != nil {
		return nil, err
	}
	transferCount, err := matchUint(transferCountPattern, svg, "transfer count", 32)
	if err != nil {
		return nil, err
	}

	id := lastMatch(tokenIDPattern, svg)
	if id == "" {
		return nil, fmt.Errorf("token id not found in svg")
	}
	tokenID, ok := new(big.Int).SetString(id, 10)
	if !ok || tokenID.BitLen() > 256 {
		return nil, fmt.Errorf("invalid token id %q", id)
	}

	return &SVGTexts{
		LogCount:      uint32(logCount),
		TransferCount: uint32(transferCount),
		TokenID:       tokenID,
	}, nil
}

// EncodeTokenURI runs the full pipeline: decode metadata, scrape the image
// counters, apply overrides and encode the call arguments.
func (e *Encoder) EncodeTokenURI(uri string, overrides *Overrides) ([]byte, error) {
	m, err := ParseTokenURI(uri)
	if err != nil {
		return nil, err
	}

	texts, err := overrides.resolve(m)
	if err != nil {
		return nil, err
	}

	return e.EncodeArguments(m, texts)
}

// Overrides supply counters explicitly instead of scraping them from the image.
// Nil fields fall back to the SVG.
type Overrides struct {
	LogCount      *uint32
	TransferCount *uint32
	TokenID       *big.Int
}

func (o *Overrides) complete() bool {
	return o != nil && o.LogCount != nil && o.TransferCount != nil && o.TokenID != nil
}

func (o *Overrides) resolve(m *Metadata) (*SVGTexts, error) {
	if o.complete() {
		return &SVGTexts{LogCount: *o.LogCount, TransferCount: *o.TransferCount, TokenID: new(big.Int).Set(o.TokenID)}, nil
	}

	svg, err := DecodeImage(m)
	if err != nil {
		return nil, err
	}
	texts, err := ExtractSVGTexts(svg)
	if err != nil {
		return nil, err
	}

	if o != nil {
		if o.LogCount != nil {
			texts.LogCount = *o.LogCount
		}
		if o.TransferCount != nil {
			texts.TransferCount = *o.TransferCount
		}
		if o.TokenID != nil {
			texts.TokenID = new(big.Int).Set(o.TokenID)
		}
	}
	return texts, nil
}

func matchUint(re *regexp.Regexp, s, what string, bits int) (uint64, error) {
	raw := lastMatch(re, s)
	if raw == "" {
		return 0, fmt.Errorf("%s not found in svg", what)
	}
	n, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return n, nil
}

// lastMatch returns the first group of the last match. The renderer's labels
// are read back the way a greedy ".*Logs/(\d+)" would read them.
func lastMatch(re *regexp.Regexp, s string) string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

func decodeDataURI(uri, prefix string) ([]byte, error) {
	payload := strings.TrimSpace(strings.TrimPrefix(uri, prefix))
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	return base64.StdEncoding.DecodeString(payload)
}
