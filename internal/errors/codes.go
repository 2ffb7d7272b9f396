// Package errors provides structured errors for mathdex.
//
// Every failure worth reporting gets a stable numeric Code. The
// hundreds digit names the subsystem that raised it:
//
//	1XX configuration
//	2XX file and disk I/O
//	3XX index store and catalog
//	4XX input validation
//	5XX analysis pipeline and internals
//
// Subsystem, severity, and retryability all derive from the code, so
// call sites only pick a code and a message.
package errors

import "fmt"

// Code identifies a failure condition. It renders in the stable wire
// form ERR_NNN_NAME that appears in CLI output and logs.
type Code int

const (
	CodeConfigNotFound   Code = 101
	CodeConfigInvalid    Code = 102
	CodeConfigPermission Code = 103

	CodeFileNotFound   Code = 201
	CodeFilePermission Code = 202
	CodeFileTooLarge   Code = 203
	CodeFileCorrupt    Code = 204

	CodeStoreLocked        Code = 301
	CodeStoreCorrupt       Code = 302
	CodeStoreClosed        Code = 303
	CodeCatalogUnavailable Code = 304

	CodeInvalidInput    Code = 401
	CodeInvalidQuery    Code = 402
	CodeQueryEmpty      Code = 403
	CodeInvalidPath     Code = 404
	CodeUnknownDocument Code = 405

	CodeInternal         Code = 501
	CodeExtractionFailed Code = 502
	CodeConceptFailed    Code = 503
	CodeSimilarityFailed Code = 504
	CodeExportFailed     Code = 505
	CodeImportFailed     Code = 506
)

var codeNames = map[Code]string{
	CodeConfigNotFound:   "CONFIG_NOT_FOUND",
	CodeConfigInvalid:    "CONFIG_INVALID",
	CodeConfigPermission: "CONFIG_PERMISSION",

	CodeFileNotFound:   "FILE_NOT_FOUND",
	CodeFilePermission: "FILE_PERMISSION",
	CodeFileTooLarge:   "FILE_TOO_LARGE",
	CodeFileCorrupt:    "FILE_CORRUPT",

	CodeStoreLocked:        "STORE_LOCKED",
	CodeStoreCorrupt:       "STORE_CORRUPT",
	CodeStoreClosed:        "STORE_CLOSED",
	CodeCatalogUnavailable: "CATALOG_UNAVAILABLE",

	CodeInvalidInput:    "INVALID_INPUT",
	CodeInvalidQuery:    "INVALID_QUERY",
	CodeQueryEmpty:      "QUERY_EMPTY",
	CodeInvalidPath:     "INVALID_PATH",
	CodeUnknownDocument: "UNKNOWN_DOCUMENT",

	CodeInternal:         "INTERNAL",
	CodeExtractionFailed: "EXTRACTION_FAILED",
	CodeConceptFailed:    "CONCEPT_FAILED",
	CodeSimilarityFailed: "SIMILARITY_FAILED",
	CodeExportFailed:     "EXPORT_FAILED",
	CodeImportFailed:     "IMPORT_FAILED",
}

// String renders the wire form, ERR_405_UNKNOWN_DOCUMENT. Codes the
// package does not know still render their number, so a mismatched
// version pair stays debuggable.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("ERR_%03d_%s", int(c), name)
	}
	return fmt.Sprintf("ERR_%03d", int(c))
}

// Subsystem groups codes by the area of mathdex that raises them.
type Subsystem string

const (
	SubsystemConfig     Subsystem = "config"
	SubsystemIO         Subsystem = "io"
	SubsystemStorage    Subsystem = "storage"
	SubsystemValidation Subsystem = "validation"
	SubsystemAnalysis   Subsystem = "analysis"
)

// Subsystem maps the code's hundreds digit to its block. Unknown
// blocks land with the analysis internals.
func (c Code) Subsystem() Subsystem {
	switch c / 100 {
	case 1:
		return SubsystemConfig
	case 2:
		return SubsystemIO
	case 3:
		return SubsystemStorage
	case 4:
		return SubsystemValidation
	}
	return SubsystemAnalysis
}

// Severity ranks how hard a failure hits. The zero value is the
// mildest, so severities compare with <.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "fatal"
}

// Severity grades the code. A corrupt store is the one condition a
// command cannot work around; lock contention resolves by itself and
// only warns.
func (c Code) Severity() Severity {
	switch {
	case c == CodeStoreCorrupt:
		return SeverityFatal
	case c.Retryable():
		return SeverityWarning
	}
	return SeverityError
}

// Retryable reports whether waiting and trying again can succeed.
func (c Code) Retryable() bool {
	return c == CodeStoreLocked
}
