package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PropertyKind identifies which value shape a Property carries.
type PropertyKind int

const (
	KindLangString PropertyKind = iota + 1 // rdf:langString
	KindString                             // rdf:string
	KindLiteral                            // rdfs:Literal with an XSD data type
	KindURI
)

func (k PropertyKind) String() string {
	switch k {
	case KindLangString:
		return "lang_string"
	case KindString:
		return "string"
	case KindLiteral:
		return "literal"
	case KindURI:
		return "uri"
	default:
		return fmt.Sprintf("PropertyKind(%d)", int(k))
	}
}

// Property is one custom metadata entry. Key must be an IRI. A key with
// several values is expressed as several properties.
type Property struct {
	Key      string
	Kind     PropertyKind
	Value    string // literal text, or the IRI for KindURI
	Lang     string // KindLangString only
	DataType string // KindLiteral only, XSD type without namespace
}

func LangStringProperty(key, value, lang string) Property {
	return Property{Key: key, Kind: KindLangString, Value: value, Lang: lang}
}

func StringProperty(key, value string) Property {
	return Property{Key: key, Kind: KindString, Value: value}
}

func LiteralProperty(key, value, dataType string) Property {
	return Property{Key: key, Kind: KindLiteral, Value: value, DataType: dataType}
}

func URIProperty(key, uri string) Property {
	return Property{Key: key, Kind: KindURI, Value: uri}
}

type propertyJSON struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (p Property) MarshalJSON() ([]byte, error) {
	var value any
	switch p.Kind {
	case KindLangString:
		value = struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		}{p.Lang, p.Value}
	case KindString:
		value = struct {
			Value string `json:"value"`
		}{p.Value}
	case KindLiteral:
		value = struct {
			DataType string `json:"dataType"`
			Value    string `json:"value"`
		}{p.DataType, p.Value}
	case KindURI:
		value = struct {
			URI string `json:"uri"`
		}{p.Value}
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnknownProperty, p.Kind)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(propertyJSON{Key: p.Key, Value: raw})
}

// UnmarshalJSON picks the value shape from the exact set of keys present.
func (p *Property) UnmarshalJSON(b []byte) error {
	var pj propertyJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return err
	}
	var fields map[string]string
	if err := json.Unmarshal(pj.Value, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownProperty, err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch strings.Join(keys, ",") {
	case "lang,value":
		*p = LangStringProperty(pj.Key, fields["value"], fields["lang"])
	case "value":
		*p = StringProperty(pj.Key, fields["value"])
	case "dataType,value":
		*p = LiteralProperty(pj.Key, fields["value"], fields["dataType"])
	case "uri":
		*p = URIProperty(pj.Key, fields["uri"])
	default:
		return fmt.Errorf("%w: keys %v", ErrUnknownProperty, keys)
	}
	return nil
}
