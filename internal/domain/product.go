package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Unknown replaces any product field missing from the source page.
const Unknown = "unknown"

type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Brand string `json:"brand"`
	Price Price  `json:"price"`
	URL   string `json:"url"`
}

// Price is a lowest offer price that may be unknown. Known prices encode as a
// JSON number, unknown ones as the Unknown string.
type Price struct {
	Value float64
	Known bool
}

func KnownPrice(v float64) Price {
	return Price{Value: v, Known: true}
}

func UnknownPrice() Price {
	return Price{}
}

func (p Price) String() string {
	if !p.Known {
		return Unknown
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return json.Marshal(Unknown)
	}
	return json.Marshal(p.Value)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*p = KnownPrice(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != Unknown {
		return fmt.Errorf("price must be a number or %q, got %q", Unknown, s)
	}
	*p = UnknownPrice()
	return nil
}
