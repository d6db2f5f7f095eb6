package lookup

import (
	"fmt"
	"strings"
)

type DocumentType int

const (
	SalesOrder DocumentType = iota + 1
	BillingDocument
)

func DocumentTypes() []DocumentType {
	return []DocumentType{SalesOrder, BillingDocument}
}

func (t DocumentType) String() string {
	switch t {
	case SalesOrder:
		return "SalesOrder"
	case BillingDocument:
		return "BillingDocument"
	default:
		return fmt.Sprintf("DocumentType(%d)", int(t))
	}
}

// configKey is the snake_case name used in the definitions file.
func (t DocumentType) configKey() string {
	switch t {
	case SalesOrder:
		return "sales_order"
	case BillingDocument:
		return "billing_document"
	default:
		return ""
	}
}

// ParseDocumentType accepts the short CLI aliases as well as the canonical names.
func ParseDocumentType(s string) (DocumentType, error) {
	normalized := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "so", "salesorder", "order":
		return SalesOrder, nil
	case "bd", "billing", "billingdocument", "billingdoc", "invoice":
		return BillingDocument, nil
	default:
		return 0, fmt.Errorf("%w: unknown document type %q", ErrValidation, s)
	}
}
