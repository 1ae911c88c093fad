package catalog

// ObjectMeta is the per-object metadata sent to the host.
type ObjectMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Summary is what the host needs to render a catalog without re-deriving metadata.
// ColorBuffer holds 3 floats per object and Metadata one entry per object, both in
// catalog order.
type Summary struct {
	Count       int
	ColorBuffer []float32
	Metadata    []ObjectMeta
}

// Summarize builds the host summary of c. A nil catalog gives an empty summary.
func Summarize(c *Catalog) Summary {
	n := c.Len()
	s := Summary{
		Count:       n,
		ColorBuffer: make([]float32, n*3),
		Metadata:    make([]ObjectMeta, n),
	}
	for i := 0; i < n; i++ {
		obj := c.At(i)
		copy(s.ColorBuffer[i*3:i*3+3], obj.Color[:])
		s.Metadata[i] = ObjectMeta{Name: obj.Name, Type: obj.Type, ID: obj.CatalogNumber}
	}
	return s
}
