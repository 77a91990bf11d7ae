package styles

const (
	MediBotIcon string = "✚"

	CheckIcon   string = "✓"
	ErrorIcon   string = "✖"
	WarningIcon string = "⚠"
	InfoIcon    string = "ℹ"
	UploadIcon  string = "⇪"
	SpinnerIcon string = "..."
	LoadingIcon string = "⟳"
)
