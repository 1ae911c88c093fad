package tle

// Source is one named element-set catalog to fetch, with the color its objects are
// drawn in by the host.
type Source struct {
	Name  string     `json:"name"`
	URL   string     `json:"url"`
	Color [3]float32 `json:"color"`
}

// SourceText is the raw two-line element text fetched for one source.
type SourceText struct {
	Source Source `msgpack:"source"`
	Text   string `msgpack:"text"`
}

// Record is one name/line1/line2 triple taken from a source's text. The lines have
// not been checked; that happens when the element set is parsed.
type Record struct {
	Name          string
	Line1         string
	Line2         string
	CatalogNumber string
}

// DefaultSources are the CelesTrak groups the engine tracks when no sources file is
// configured: active satellites in green, the three large debris clouds in red.
var DefaultSources = []Source{
	{Name: "Active Sats", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=active&FORMAT=tle", Color: [3]float32{0, 1, 0}},
	{Name: "Fengyun 1C Debris", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=1999-025&FORMAT=tle", Color: [3]float32{1, 0, 0}},
	{Name: "Iridium 33 Debris", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=iridium-33&FORMAT=tle", Color: [3]float32{1, 0, 0}},
	{Name: "Cosmos 2251 Debris", URL: "https://celestrak.org/NORAD/elements/gp.php?GROUP=cosmos-2251-debris&FORMAT=tle", Color: [3]float32{1, 0, 0}},
}
