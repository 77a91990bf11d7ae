package chat

// SendMsg asks the chat page to submit a question.
type SendMsg struct {
	Text string
}

// UploadMsg asks the chat page to upload the files matched by Paths.
type UploadMsg struct {
	Paths []string
}

// HistoryChangedMsg tells the message list to re-read the transcript.
type HistoryChangedMsg struct{}

// UploadFinishedMsg resets the upload prompt once a batch resolved.
type UploadFinishedMsg struct{}

// UploadRejectedMsg re-enables the upload prompt when the batch never left,
// so the paths can be corrected.
type UploadRejectedMsg struct{}

const (
	PendingText    = "Analizando Mensaje ..."
	DisclaimerText = "Advertencia: MediBot es una herramienta de apoyo. Consulte siempre a un profesional médico."
)
