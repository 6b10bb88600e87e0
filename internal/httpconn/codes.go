package httpconn

// CheckState is the state of the request parser.
type CheckState int

const (
	// CheckStateRequestLine is parsing the request line.
	CheckStateRequestLine CheckState = iota
	// CheckStateHeader is parsing header lines.
	CheckStateHeader
	// CheckStateContent is waiting for Content-Length body bytes.
	CheckStateContent
)

func (s CheckState) String() string {
	switch s {
	case CheckStateRequestLine:
		return "REQUEST_LINE"
	case CheckStateHeader:
		return "HEADER"
	case CheckStateContent:
		return "CONTENT"
	}
	return "UNKNOWN"
}

// HTTPCode is the outcome of parsing and resolving a request.
type HTTPCode int

const (
	// NoRequest means the request is incomplete, more input is needed.
	NoRequest HTTPCode = iota
	// GetRequest means a complete request was assembled.
	GetRequest
	// BadRequest is a malformed request or a directory target.
	BadRequest
	// NoResource means the target does not exist.
	NoResource
	// ForbiddenRequest means the target is not world-readable.
	ForbiddenRequest
	// FileRequest means the target is mapped and ready to send.
	FileRequest
	// InternalError is an unreachable parser state or a failed mapping.
	InternalError
	// ClosedConnection means the peer went away.
	ClosedConnection
)

var httpCodeNames = [...]string{
	NoRequest:        "NO_REQUEST",
	GetRequest:       "GET_REQUEST",
	BadRequest:       "BAD_REQUEST",
	NoResource:       "NO_RESOURCE",
	ForbiddenRequest: "FORBIDDEN_REQUEST",
	FileRequest:      "FILE_REQUEST",
	InternalError:    "INTERNAL_ERROR",
	ClosedConnection: "CLOSED_CONNECTION",
}

func (c HTTPCode) String() string {
	if c >= 0 && int(c) < len(httpCodeNames) {
		return httpCodeNames[c]
	}
	return "UNKNOWN"
}

// LineStatus is the result of scanning for one line.
type LineStatus int

const (
	// LineOK means a full line was found.
	LineOK LineStatus = iota
	// LineBad means the line framing is broken.
	LineBad
	// LineOpen means the line is not complete yet.
	LineOpen
)

// Interest is the readiness a connection is currently armed for.
type Interest uint32

const (
	// InterestNone means the connection is not armed and belongs to whoever handles it.
	InterestNone Interest = iota
	// InterestRead means the connection waits for one readable event.
	InterestRead
	// InterestWrite means the connection waits for one writable event.
	InterestWrite
)
