package formatprovider

// DataFileProvider handles structured data files (json, xml, yaml) with
// format-aware splitter separators so chunk boundaries prefer record and
// field edges over arbitrary characters.
type DataFileProvider struct{ textProvider }

// NewDataFileProvider returns the "json/xml/yaml" provider.
func NewDataFileProvider(rendererBinary string) *DataFileProvider {
	return &DataFileProvider{textProvider{
		base: base{
			name:             "json/xml/yaml",
			extensions:       []string{"json", "xml", "yaml", "yml"},
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			separators:       []string{"},\n", "},", ",\n", "\n", " ", ""},
			multiprocessable: true,
		},
		language:  "json",
		converter: newHTMLToPDFConverter(rendererBinary),
	}}
}
