package model

// Tariff is a purchasable credit bundle. The catalog is loaded from
// configuration and treated as read-only — prices never change under a
// running process.
type Tariff struct {
	Key     string  `json:"key" mapstructure:"key"`
	Price   float64 `json:"price" mapstructure:"price"`
	Credits int     `json:"credits" mapstructure:"credits"`
	Label   string  `json:"label" mapstructure:"label"`
}

// Role is a named analysis persona with its instruction prompt. Like
// tariffs, roles come from configuration and are read-only.
type Role struct {
	Key    string `json:"key" mapstructure:"key"`
	Name   string `json:"name" mapstructure:"name"`
	Prompt string `json:"-" mapstructure:"prompt"`
}
