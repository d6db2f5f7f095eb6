package lookup

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"doclookup/internal/odata"

	"gopkg.in/yaml.v3"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
)

func (k FieldKind) String() string {
	if k == KindDate {
		return "date"
	}
	return "text"
}

func (k *FieldKind) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(value.Value)) {
	case "", "text", "string":
		*k = KindText
	case "date":
		*k = KindDate
	default:
		return fmt.Errorf("line %d: unknown field kind %q", value.Line, value.Value)
	}
	return nil
}

type Field struct {
	Name  string    `yaml:"name"`
	Label string    `yaml:"label"`
	Kind  FieldKind `yaml:"kind"`
}

// Definition is the immutable per-type configuration the service is
// parameterized by. Values returned from Definitions are copies.
type Definition struct {
	Type            DocumentType
	Label           string
	EntitySet       string
	KeyField        string
	ItemsNavigation string
	DisplayFields   []Field
	FilterFields    []Field
	ItemFields      []Field
}

func (d Definition) HasItems() bool {
	return d.ItemsNavigation != ""
}

func (d Definition) KeyPath(key string) string {
	return odata.EntityPath(d.EntitySet, key)
}

func (d Definition) ItemsPath(key string) string {
	return odata.NavigationPath(d.EntitySet, key, d.ItemsNavigation)
}

func (d Definition) CollectionPath() string {
	return "/" + d.EntitySet
}

func (d Definition) FilterField(name string) (Field, bool) {
	for _, f := range d.FilterFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

func (d Definition) clone() Definition {
	d.DisplayFields = slices.Clone(d.DisplayFields)
	d.FilterFields = slices.Clone(d.FilterFields)
	d.ItemFields = slices.Clone(d.ItemFields)
	return d
}

func (d Definition) validate() error {
	if d.EntitySet == "" {
		return fmt.Errorf("%s: entity_set is required", d.Type)
	}
	if d.KeyField == "" {
		return fmt.Errorf("%s: key_field is required", d.Type)
	}
	seen := map[string]bool{}
	for _, f := range d.FilterFields {
		if f.Name == "" {
			return fmt.Errorf("%s: filter field without name", d.Type)
		}
		if seen[strings.ToLower(f.Name)] {
			return fmt.Errorf("%s: duplicate filter field %q", d.Type, f.Name)
		}
		seen[strings.ToLower(f.Name)] = true
	}
	return nil
}

type Definitions map[DocumentType]Definition

func (d Definitions) Get(t DocumentType) (Definition, error) {
	def, ok := d[t]
	if !ok {
		return Definition{}, fmt.Errorf("%w: no definition for %s", ErrValidation, t)
	}
	return def.clone(), nil
}

// DefaultDefinitions returns a fresh set of the built-in definitions.
func DefaultDefinitions() Definitions {
	return Definitions{
		SalesOrder: {
			Type:      SalesOrder,
			Label:     "Sales Order",
			EntitySet: "ZC_SOHEADER",
			KeyField:  "SalesOrder",
			DisplayFields: []Field{
				{Name: "SalesOrder", Label: "Sales Order"},
				{Name: "SalesOrderType", Label: "Order Type"},
				{Name: "SoldToParty", Label: "Sold To Party"},
				{Name: "PurchaseOrderByCustomer", Label: "PO Customer"},
				{Name: "CreationDate", Label: "Creation Date", Kind: KindDate},
				{Name: "BillingCompanyCode", Label: "Billing Code"},
				{Name: "SalesOrganization", Label: "Sales Org"},
				{Name: "TotalNetAmount", Label: "Net Amount"},
				{Name: "TransactionCurrency", Label: "Currency"},
			},
			FilterFields: []Field{
				{Name: "SalesOrder", Label: "Sales Order"},
				{Name: "SoldToParty", Label: "Sold To Party"},
				{Name: "PurchaseOrderByCustomer", Label: "PO Customer"},
				{Name: "CreationDate", Label: "Creation Date", Kind: KindDate},
				{Name: "BillingCompanyCode", Label: "Billing Code"},
				{Name: "SalesOrganization", Label: "Sales Org"},
			},
		},
		BillingDocument: {
			Type:            BillingDocument,
			Label:           "Billing Document",
			EntitySet:       "ZC_BILLINGDOCHEADER",
			KeyField:        "BillingDocument",
			ItemsNavigation: "to_Item",
			DisplayFields: []Field{
				{Name: "BillingDocument", Label: "Billing Document"},
				{Name: "BillingDocumentType", Label: "Billing Type"},
				{Name: "SoldToParty", Label: "Sold To Party"},
				{Name: "BillingDocumentDate", Label: "Billing Date", Kind: KindDate},
				{Name: "CompanyCode", Label: "Company Code"},
				{Name: "SalesOrganization", Label: "Sales Org"},
				{Name: "TotalNetAmount", Label: "Net Amount"},
				{Name: "TransactionCurrency", Label: "Currency"},
			},
			FilterFields: []Field{
				{Name: "BillingDocument", Label: "Billing Document"},
				{Name: "SoldToParty", Label: "Sold To Party"},
				{Name: "BillingDocumentType", Label: "Billing Type"},
				{Name: "BillingDocumentDate", Label: "Billing Date", Kind: KindDate},
				{Name: "CompanyCode", Label: "Company Code"},
				{Name: "SalesOrganization", Label: "Sales Org"},
			},
			ItemFields: []Field{
				{Name: "BillingDocumentItem", Label: "Item"},
				{Name: "Material", Label: "Material"},
				{Name: "BillingDocumentItemText", Label: "Description"},
				{Name: "BillingQuantity", Label: "Quantity"},
				{Name: "BillingQuantityUnit", Label: "Unit"},
				{Name: "NetAmount", Label: "Net Amount"},
			},
		},
	}
}

type definitionOverride struct {
	Label           string  `yaml:"label"`
	EntitySet       string  `yaml:"entity_set"`
	KeyField        string  `yaml:"key_field"`
	ItemsNavigation *string `yaml:"items_navigation"`
	DisplayFields   []Field `yaml:"display_fields"`
	FilterFields    []Field `yaml:"filter_fields"`
	ItemFields      []Field `yaml:"item_fields"`
}

// LoadDefinitions overlays the YAML file at path onto the defaults.
// An empty path yields the defaults.
func LoadDefinitions(path string) (Definitions, error) {
	defs := DefaultDefinitions()
	if path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

func ParseDefinitions(data []byte) (Definitions, error) {
	defs := DefaultDefinitions()

	var overrides map[string]definitionOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}

	for name := range overrides {
		known := false
		for _, t := range DocumentTypes() {
			if t.configKey() == name {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("parse definitions: unknown document type %q", name)
		}
	}

	var errs []error
	for _, t := range DocumentTypes() {
		o, ok := overrides[t.configKey()]
		if !ok {
			continue
		}
		def := defs[t]
		if o.Label != "" {
			def.Label = o.Label
		}
		if o.EntitySet != "" {
			def.EntitySet = o.EntitySet
		}
		if o.KeyField != "" {
			def.KeyField = o.KeyField
		}
		if o.ItemsNavigation != nil {
			def.ItemsNavigation = strings.TrimSpace(*o.ItemsNavigation)
		}
		if o.DisplayFields != nil {
			def.DisplayFields = o.DisplayFields
		}
		if o.FilterFields != nil {
			def.FilterFields = o.FilterFields
		}
		if o.ItemFields != nil {
			def.ItemFields = o.ItemFields
		}
		if err := def.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		defs[t] = def
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	return defs, nil
}
