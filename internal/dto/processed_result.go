package dto

// ProcessedResult is the backend's answer to a one-shot image upload.
type ProcessedResult struct {
	RequestID         string `json:"request_id"`
	Filename          string `json:"filename,omitempty"`
	AnnotatedFilename string `json:"annotated_filename"`
	PDFFilename       string `json:"pdf_filename"`
}
