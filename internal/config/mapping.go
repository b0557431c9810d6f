package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel names for the two independent line-item tables on a record.
const (
	ChannelInternal = "internal"
	ChannelExternal = "external"
)

// FieldMapping describes how one channel's generic line-item roles map to
// the concrete attribute keys of that channel, plus where the channel's
// table lives on the record and which header attribute receives its
// subtotal. A single generic reconciler works on any channel through this
// mapping instead of channel-specific code paths.
type FieldMapping struct {
	Channel      string `yaml:"channel"`
	TableAttr    string `yaml:"tableAttribute"`
	TableFieldID string `yaml:"tableFieldId"`
	SubtotalAttr string `yaml:"subtotalAttribute"`

	Quantity    string `yaml:"quantity"`
	Price       string `yaml:"price"`
	Amount      string `yaml:"amount"`
	Description string `yaml:"description"`
	UOM         string `yaml:"uom"`
	PartNumber  string `yaml:"partNumber"`
}

// DefaultMappings returns the built-in channel mappings wired to the
// configured remote table field ids, internal channel first.
func (c *Config) DefaultMappings() []FieldMapping {
	return []FieldMapping{
		{
			Channel:      ChannelInternal,
			TableAttr:    "cf_items_btpo",
			TableFieldID: c.TableFieldIDInternal,
			SubtotalAttr: "cf_subtotal_n",
			Quantity:     "cf_order_qty_int",
			Price:        "cf_price_per_unit_int",
			Amount:       "cf_dollar_amount_internal",
			Description:  "cf_item_desc_int",
			UOM:          "cf_uom_int",
			PartNumber:   "cf_item_part_num_int",
		},
		{
			Channel:      ChannelExternal,
			TableAttr:    "cf_items_btpo_api2",
			TableFieldID: c.TableFieldIDExternal,
			SubtotalAttr: "cf_subtotal_external",
			Quantity:     "cf_order_qty_ext",
			Price:        "cf_price_per_unit_ext",
			Amount:       "cf_dollar_amount_external",
			Description:  "cf_item_desc_ext",
			UOM:          "cf_uom_ext",
			PartNumber:   "cf_item_part_num_ext",
		},
	}
}

// Mappings returns the channel field mappings, applying the YAML override
// file when one is configured. Overridden mappings without a table field id
// inherit the id configured for their channel.
func (c *Config) Mappings() ([]FieldMapping, error) {
	if c.MappingFile == "" {
		return c.DefaultMappings(), nil
	}

	data, err := os.ReadFile(c.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", c.MappingFile, err)
	}

	var mappings []FieldMapping
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", c.MappingFile, err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("mapping file %s defines no channels", c.MappingFile)
	}

	for i := range mappings {
		if mappings[i].TableFieldID != "" {
			continue
		}
		switch mappings[i].Channel {
		case ChannelInternal:
			mappings[i].TableFieldID = c.TableFieldIDInternal
		case ChannelExternal:
			mappings[i].TableFieldID = c.TableFieldIDExternal
		default:
			return nil, fmt.Errorf("mapping file %s: channel %q has no tableFieldId", c.MappingFile, mappings[i].Channel)
		}
	}

	return mappings, nil
}
