package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_Classification(t *testing.T) {
	tests := []struct {
		code      Code
		wantSub   Subsystem
		wantSev   Severity
		wantRetry bool
	}{
		{CodeConfigNotFound, SubsystemConfig, SeverityError, false},
		{CodeConfigInvalid, SubsystemConfig, SeverityError, false},
		{CodeFileNotFound, SubsystemIO, SeverityError, false},
		{CodeFileTooLarge, SubsystemIO, SeverityError, false},
		{CodeStoreLocked, SubsystemStorage, SeverityWarning, true},
		{CodeStoreCorrupt, SubsystemStorage, SeverityFatal, false},
		{CodeCatalogUnavailable, SubsystemStorage, SeverityError, false},
		{CodeInvalidQuery, SubsystemValidation, SeverityError, false},
		{CodeUnknownDocument, SubsystemValidation, SeverityError, false},
		{CodeInternal, SubsystemAnalysis, SeverityError, false},
		{CodeSimilarityFailed, SubsystemAnalysis, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.wantSub, tt.code.Subsystem())
			assert.Equal(t, tt.wantSev, tt.code.Severity())
			assert.Equal(t, tt.wantRetry, tt.code.Retryable())
		})
	}
}

func TestCode_WireForm(t *testing.T) {
	assert.Equal(t, "ERR_405_UNKNOWN_DOCUMENT", CodeUnknownDocument.String())
	assert.Equal(t, "ERR_102_CONFIG_INVALID", CodeConfigInvalid.String())
}

func TestCode_UnknownStillRenders(t *testing.T) {
	// A newer mathdex can emit codes this build has no name for.
	assert.Equal(t, "ERR_907", Code(907).String())
	assert.Equal(t, "ERR_000", Code(0).String())
}

func TestCode_UnknownBlocksGradeAsAnalysis(t *testing.T) {
	assert.Equal(t, SubsystemAnalysis, Code(0).Subsystem())
	assert.Equal(t, SubsystemAnalysis, Code(901).Subsystem())
	assert.Equal(t, SeverityError, Code(901).Severity())
}

func TestSeverity_Ordered(t *testing.T) {
	assert.Less(t, SeverityInfo, SeverityWarning)
	assert.Less(t, SeverityWarning, SeverityError)
	assert.Less(t, SeverityError, SeverityFatal)
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "fatal", SeverityFatal.String())
}

func TestMathdexError_ErrorIncludesCode(t *testing.T) {
	err := New(CodeUnknownDocument, "no document named thesis.tex", nil)

	assert.Equal(t, "[ERR_405_UNKNOWN_DOCUMENT] no document named thesis.tex", err.Error())
}

func TestMathdexError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("disk read failed")
	err := New(CodeFileNotFound, "cannot read paper.tex", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestMathdexError_IsComparesByCode(t *testing.T) {
	locked1 := New(CodeStoreLocked, "store locked by pid 100", nil)
	locked2 := New(CodeStoreLocked, "store locked by pid 200", nil)
	missing := New(CodeFileNotFound, "gone", nil)

	assert.True(t, errors.Is(locked1, locked2), "same code should match regardless of message")
	assert.False(t, errors.Is(locked1, missing))
}

func TestMathdexError_ChainableContext(t *testing.T) {
	err := New(CodeFileTooLarge, "paper.tex exceeds the size limit", nil).
		WithField("path", "/papers/paper.tex").
		WithField("size_mb", "52").
		WithHint("split the document or raise the configured size limit")

	assert.Equal(t, "/papers/paper.tex", err.Fields["path"])
	assert.Equal(t, "52", err.Fields["size_mb"])
	assert.Contains(t, err.Hint, "size limit")
}

func TestCodeOf_SeesThroughWrapping(t *testing.T) {
	// fmt.Errorf chains are the common shape by the time an error
	// reaches main, so the lookup must search the whole chain.
	inner := New(CodeStoreCorrupt, "store corrupted at /tmp/idx.db", nil)
	outer := fmt.Errorf("failed to open index store: %w", inner)

	assert.Equal(t, CodeStoreCorrupt, CodeOf(outer))
	assert.Equal(t, SeverityFatal, CodeOf(outer).Severity())
}

func TestCodeOf_PlainAndNilErrors(t *testing.T) {
	assert.Equal(t, Code(0), CodeOf(errors.New("plain failure")))
	assert.Equal(t, Code(0), CodeOf(nil))
	assert.Equal(t, SeverityError, CodeOf(nil).Severity(), "missing codes must not grade fatal")
}
