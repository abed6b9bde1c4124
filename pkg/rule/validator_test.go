package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/docvault/pkg/rule"
)

// operationRequest 模拟提交批量操作的请求体.
type operationRequest struct {
	Kind      string   `rule:"required,oneof=download move copy delete mark_read"`
	FolderIDs []string `rule:"max=500"`
	FileIDs   []string `rule:"max=500"`
	TargetID  string   `rule:"omitempty,min=1"`
}

func TestEngineNotNil(t *testing.T) {
	if rule.Engine() == nil {
		t.Fatal("Engine() returned nil")
	}
}

func TestValidateOperationRequest(t *testing.T) {
	ok := operationRequest{Kind: "download", FolderIDs: []string{"root"}}
	if err := rule.ValidateStruct(ok); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	if err := rule.ValidateStruct(operationRequest{Kind: ""}); err == nil {
		t.Error("missing kind accepted")
	}

	if err := rule.ValidateStruct(operationRequest{Kind: "shred"}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestValidateVar(t *testing.T) {
	if err := rule.ValidateVar("alice@example.com", "required,email"); err != nil {
		t.Errorf("valid principal id rejected: %v", err)
	}

	if err := rule.ValidateVar("not-an-address", "required,email"); err == nil {
		t.Error("malformed principal id accepted")
	}

	// 队列长度下界
	if err := rule.ValidateVar(1024, "min=1"); err != nil {
		t.Errorf("valid queue size rejected: %v", err)
	}

	if err := rule.ValidateVar(0, "min=1"); err == nil {
		t.Error("zero queue size accepted")
	}
}

func TestRegisterCustomRule(t *testing.T) {
	// 根桶键必须以 @ 开头
	err := rule.RegisterValidation("bucket_key", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok || s == "" {
			return false
		}

		return s[0] == '@'
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := rule.ValidateVar("@my", "bucket_key"); err != nil {
		t.Errorf("valid bucket key rejected: %v", err)
	}

	if err := rule.ValidateVar("my", "bucket_key"); err == nil {
		t.Error("bare bucket key accepted")
	}
}

func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("entry_id", "required,min=1,max=64")

	if err := rule.ValidateVar("f1", "entry_id"); err != nil {
		t.Errorf("valid entry id rejected: %v", err)
	}

	if err := rule.ValidateVar("", "entry_id"); err == nil {
		t.Error("empty entry id accepted")
	}
}
