package enums

import "fmt"

type LineItemKind string

const (
	LineItemPart   LineItemKind = "part"
	LineItemLabor  LineItemKind = "labor"
	LineItemCustom LineItemKind = "custom"
)

var validLineItemKinds = []LineItemKind{
	LineItemPart,
	LineItemLabor,
	LineItemCustom,
}

func (k LineItemKind) IsValid() bool {
	for _, candidate := range validLineItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseLineItemKind(value string) (LineItemKind, error) {
	for _, candidate := range validLineItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item kind %q", value)
}
