package awsprovision

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

type fakeAPIError struct{ code string }

func (e *fakeAPIError) Error() string     { return fmt.Sprintf("fake api error: %s", e.code) }
func (e *fakeAPIError) ErrorCode() string { return e.code }
func (e *fakeAPIError) ErrorMessage() string {
	return "fake"
}
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func TestIsAPIErrorMatchesCode(t *testing.T) {
	err := &fakeAPIError{code: "BucketAlreadyOwnedByYou"}
	if !isAPIError(err, "BucketAlreadyOwnedByYou") {
		t.Fatal("expected isAPIError to match the error code")
	}
	if isAPIError(err, "ConflictException") {
		t.Fatal("expected isAPIError not to match a different code")
	}
}

func TestIsAPIErrorFalseForPlainError(t *testing.T) {
	if isAPIError(errors.New("boom"), "ConflictException") {
		t.Fatal("expected isAPIError to be false for a non-API error")
	}
}

func TestPiiEntitiesCoversCoreSecretTypes(t *testing.T) {
	if len(piiEntities) < 4 {
		t.Fatalf("expected at least 4 PII entity types to block, got %d", len(piiEntities))
	}
}
