package types

import (
	"errors"
	"testing"

	"github.com/nebulahq/nebula/id"
	"github.com/nebulahq/nebula/validator"
)

// An absent ID should report only "is required", not also "is invalid".
func Test_Validate_emptyIDSingleMessage(t *testing.T) {
	tt := []struct {
		name  string
		err   error
		field string
	}{
		{name: "retrieve_user", err: (&RetrieveUser{}).Validate(), field: "UserID"},
		{name: "update_enrollment_progress", err: (&UpdateEnrollmentProgress{}).Validate(), field: "EnrollmentID"},
		{name: "deactivate_program", err: (&DeactivateProgram{}).Validate(), field: "ProgramID"},
		{name: "create_cohort", err: (&CreateCohort{Name: "Cohort 1"}).Validate(), field: "ProgramID"},
		{name: "retrieve_conversation", err: (&RetrieveConversation{}).Validate(), field: "ConversationID"},
		{name: "mark_conversation_read", err: (&MarkConversationRead{}).Validate(), field: "ConversationID"},
		{name: "create_conversation", err: (&CreateConversation{Content: "hi"}).Validate(), field: "OtherUserID"},
		{name: "create_message", err: (&CreateMessage{Content: "hi"}).Validate(), field: "ConversationID"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var v *validator.Validator
			if !errors.As(tc.err, &v) {
				t.Fatalf("Validate() = %v, want validator error", tc.err)
			}

			if got := v.All(tc.field); len(got) != 1 {
				t.Errorf("%s messages = %q, want exactly one", tc.field, got)
			}
		})
	}
}

func Test_Validate_malformedID(t *testing.T) {
	in := RetrieveUser{UserID: "not-an-id"}
	err := in.Validate()

	var v *validator.Validator
	if !errors.As(err, &v) {
		t.Fatalf("Validate() = %v, want validator error", err)
	}
	if got := v.All("UserID"); len(got) != 1 {
		t.Errorf("UserID messages = %q, want exactly one", got)
	}
}

func Test_Validate_wellFormedID(t *testing.T) {
	in := RetrieveUser{UserID: id.Generate()}
	if err := in.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
