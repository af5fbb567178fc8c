package formatprovider

// codeExtensions lists the source-file suffixes dispatched to the "code"
// provider. It deliberately excludes formats with their own providers
// (markdown, json/xml/yaml, html) per the dispatch invariant that no two
// enabled providers claim the same extension.
var codeExtensions = []string{
	"go", "py", "js", "ts", "tsx", "jsx", "java", "c", "h", "cpp", "hpp",
	"cs", "rb", "rs", "php", "sh", "sql", "kt", "swift", "scala", "lua",
}

// CodeProvider handles program source files, rendering them as an escaped
// <pre><code> block with no syntax highlighting.
type CodeProvider struct{ textProvider }

// NewCodeProvider returns the "code" provider.
func NewCodeProvider(rendererBinary string) *CodeProvider {
	return &CodeProvider{textProvider{
		base: base{
			name:             "code",
			extensions:       codeExtensions,
			defaultChunkSize: defaultChunkSize,
			defaultOverlap:   defaultChunkOverlap,
			separators:       []string{"\nfunc ", "\nclass ", "\ndef ", "\n\n", "\n", " ", ""},
			multiprocessable: true,
		},
		language:  "text",
		converter: newHTMLToPDFConverter(rendererBinary),
	}}
}
