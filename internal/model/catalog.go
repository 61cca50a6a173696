package model

// Option is a selectable value with a display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const (
	DefaultLanguage = "python"
	DefaultCategory = "general"
)

// Categories lists the categories a snippet may belong to.
var Categories = []Option{
	{Value: "general", Label: "General"},
	{Value: "frontend", Label: "Frontend"},
	{Value: "backend", Label: "Backend"},
	{Value: "database", Label: "Database"},
	{Value: "devops", Label: "DevOps"},
	{Value: "testing", Label: "Testing"},
	{Value: "data-science", Label: "Data Science"},
	{Value: "power-platform", Label: "Power Platform"},
	{Value: "utils", Label: "Utilities"},
}

// Languages lists the languages the editor understands.
var Languages = []Option{
	{Value: "python", Label: "Python"},
	{Value: "javascript", Label: "JavaScript"},
	{Value: "typescript", Label: "TypeScript"},
	{Value: "java", Label: "Java"},
	{Value: "sql", Label: "SQL"},
	{Value: "r", Label: "R Stats"},
	{Value: "powerfx", Label: "Power Apps (Power FX)"},
	{Value: "dax", Label: "Power BI (DAX)"},
	{Value: "m", Label: "Power Query (M)"},
	{Value: "excel", Label: "Excel Formulas"},
	{Value: "scala", Label: "Scala"},
	{Value: "html", Label: "HTML"},
	{Value: "css", Label: "CSS"},
	{Value: "json", Label: "JSON"},
	{Value: "bash", Label: "Bash/Shell"},
}

// FileExtensions maps a language to the extension used for downloads.
var FileExtensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"java":       "java",
	"scala":      "scala",
	"r":          "r",
	"sql":        "sql",
	"html":       "html",
	"css":        "css",
	"json":       "json",
	"bash":       "sh",
}

// IsKnownCategory reports whether v is one of Categories.
func IsKnownCategory(v string) bool {
	return contains(Categories, v)
}

// IsKnownLanguage reports whether v is one of Languages.
func IsKnownLanguage(v string) bool {
	return contains(Languages, v)
}

// FileExtension returns the download extension for language, or "txt".
func FileExtension(language string) string {
	if ext, ok := FileExtensions[language]; ok {
		return ext
	}
	return "txt"
}

func contains(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}
