package workflow

// User-facing alert texts.
const (
	MsgNotImage     = "Please upload a valid image file."
	MsgUploadFailed = "Failed to upload and analyze the report. Try again."
	MsgBoardParse   = "Error parsing treatment plan. Please try again."
	MsgBoardFailed  = "Failed to process treatment plan."
)
