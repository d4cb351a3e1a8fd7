package models

// Country is a supported destination. ID is the inventory provider's
// numeric country identifier.
type Country struct {
	ID     int    `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
	Flag   string `json:"flag"`
}

func (c Country) IsZero() bool {
	return c.ID == 0
}

func (c Country) Label() string {
	if c.Flag == "" {
		return c.Name
	}
	return c.Flag + " " + c.Name
}

var supportedCountries = []Country{
	{ID: 4, Code: "TR", Name: "Турция", NameEn: "Turkey", Flag: "🇹🇷"},
	{ID: 1, Code: "EG", Name: "Египет", NameEn: "Egypt", Flag: "🇪🇬"},
	{ID: 9, Code: "AE", Name: "ОАЭ", NameEn: "UAE", Flag: "🇦🇪"},
	{ID: 2, Code: "TH", Name: "Таиланд", NameEn: "Thailand", Flag: "🇹🇭"},
	{ID: 8, Code: "MV", Name: "Мальдивы", NameEn: "Maldives", Flag: "🇲🇻"},
	{ID: 16, Code: "VN", Name: "Вьетнам", NameEn: "Vietnam", Flag: "🇻🇳"},
}

// SupportedCountries returns a copy of the destination table in display order.
func SupportedCountries() []Country {
	out := make([]Country, len(supportedCountries))
	copy(out, supportedCountries)
	return out
}

func CountryByID(id int) (Country, bool) {
	for _, c := range supportedCountries {
		if c.ID == id {
			return c, true
		}
	}
	return Country{}, false
}

// CountryByName matches a display name, english name or ISO code,
// case-insensitively.
func CountryByName(name string) (Country, bool) {
	key := foldKey(name)
	if key == "" {
		return Country{}, false
	}
	for _, c := range supportedCountries {
		if foldKey(c.Name) == key || foldKey(c.NameEn) == key || foldKey(c.Code) == key {
			return c, true
		}
	}
	return Country{}, false
}
