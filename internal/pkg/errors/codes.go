package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success（响应体沿用 code==200 表示成功的历史约定）
	Success = 200

	// Common errors (1000-1999)
	ErrInternalServer = 1000
	ErrInvalidParams  = 1001
	ErrNotFound       = 1002
	ErrConflict       = 1003
	ErrTimeout        = 1004
	ErrTransport      = 1005
	ErrServiceUnavail = 1006

	// File errors (2000-2999)
	ErrFileNotFound       = 2000
	ErrFileNameExists     = 2001
	ErrFileAlreadyDeleted = 2002
	ErrFileNotDeleted     = 2003
	ErrFileModified       = 2004
	ErrUploadEmpty        = 2005
	ErrUploadTooLarge     = 2006
	ErrUploadInvalidType  = 2007
	ErrUploadTimeout      = 2008
	ErrStorageFailed      = 2009

	// Version errors (3000-3999)
	ErrVersionNotFound        = 3000
	ErrVersionInvalidSegments = 3001

	// Recognition errors (4000-4999)
	ErrTaskAlreadyRunning = 4000
	ErrTaskNotFound       = 4001
	ErrTrackingLost       = 4002
	ErrEngineUnavailable  = 4003
	ErrEngineFailed       = 4004
	ErrUnsupportedLang    = 4005

	// Export errors (5000-5999)
	ErrExportBadFormat = 5000
	ErrExportFailed    = 5001
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "success"},

	// Common errors
	ErrInternalServer: {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:  {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:       {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:       {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTimeout:        {ErrTimeout, http.StatusGatewayTimeout, "Operation timed out"},
	ErrTransport:      {ErrTransport, http.StatusBadGateway, "Upstream transport failure"},
	ErrServiceUnavail: {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// File errors
	ErrFileNotFound:       {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileNameExists:     {ErrFileNameExists, http.StatusConflict, "File name already exists"},
	ErrFileAlreadyDeleted: {ErrFileAlreadyDeleted, http.StatusConflict, "File already in trash"},
	ErrFileNotDeleted:     {ErrFileNotDeleted, http.StatusConflict, "File is not in trash"},
	ErrFileModified:       {ErrFileModified, http.StatusConflict, "File was modified by another request"},
	ErrUploadEmpty:        {ErrUploadEmpty, http.StatusBadRequest, "Uploaded file is empty"},
	ErrUploadTooLarge:     {ErrUploadTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrUploadInvalidType:  {ErrUploadInvalidType, http.StatusBadRequest, "Unsupported file type"},
	ErrUploadTimeout:      {ErrUploadTimeout, http.StatusGatewayTimeout, "Upload timed out"},
	ErrStorageFailed:      {ErrStorageFailed, http.StatusInternalServerError, "Storage operation failed"},

	// Version errors
	ErrVersionNotFound:        {ErrVersionNotFound, http.StatusNotFound, "Version not found"},
	ErrVersionInvalidSegments: {ErrVersionInvalidSegments, http.StatusBadRequest, "Invalid segment sequence"},

	// Recognition errors
	ErrTaskAlreadyRunning: {ErrTaskAlreadyRunning, http.StatusConflict, "Recognition task already running"},
	ErrTaskNotFound:       {ErrTaskNotFound, http.StatusNotFound, "Recognition task not found"},
	ErrTrackingLost:       {ErrTrackingLost, http.StatusBadGateway, "Progress tracking lost"},
	ErrEngineUnavailable:  {ErrEngineUnavailable, http.StatusBadGateway, "Recognition engine unavailable"},
	ErrEngineFailed:       {ErrEngineFailed, http.StatusInternalServerError, "Recognition failed"},
	ErrUnsupportedLang:    {ErrUnsupportedLang, http.StatusBadRequest, "Unsupported language"},

	// Export errors
	ErrExportBadFormat: {ErrExportBadFormat, http.StatusBadRequest, "Unsupported export format"},
	ErrExportFailed:    {ErrExportFailed, http.StatusInternalServerError, "Export failed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
