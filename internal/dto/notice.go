package dto

// SendNoticeRequest asks for an allocation file to be sent to a department.
type SendNoticeRequest struct {
	Department string `json:"department" validate:"required"`
	FilePath   string `json:"filePath" validate:"required"`
}

// SendNoticeResponse keeps the legacy {success, msg} contract.
type SendNoticeResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}
