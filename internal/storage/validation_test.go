package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/atikulmunna/visual-invoice-processor/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "param",
			wantErr:   true,
		},
		{
			name:      "string with spaces",
			str:       "  test  ",
			paramName: "param",
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}

func TestValidateFingerprint(t *testing.T) {
	tests := []struct {
		name    string
		fp      model.Fingerprint
		errMsg  string
		wantErr bool
	}{
		{
			name:    "valid fingerprint",
			fp:      model.Fingerprint{SourceID: "drive-1", ContentHash: "abc123"},
			wantErr: false,
		},
		{
			name:    "missing source id",
			fp:      model.Fingerprint{ContentHash: "abc123"},
			wantErr: true,
			errMsg:  "missing source id",
		},
		{
			name:    "missing content hash",
			fp:      model.Fingerprint{SourceID: "drive-1"},
			wantErr: true,
			errMsg:  "missing content hash",
		},
		{
			name:    "zero fingerprint",
			fp:      model.Fingerprint{},
			wantErr: true,
			errMsg:  "missing source id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFingerprint(tt.fp)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFingerprint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateFingerprint() error should contain %s, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateDeadLetter(t *testing.T) {
	validFp := model.Fingerprint{SourceID: "drive-1", ContentHash: "abc123"}

	tests := []struct {
		entry   *model.DeadLetterEntry
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name: "valid entry",
			entry: &model.DeadLetterEntry{
				Fingerprint: validFp,
				Stage:       model.StageExtract,
				Kind:        model.FailureExtractionParse,
			},
			wantErr: false,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantErr: true,
			errMsg:  "entry",
		},
		{
			name: "missing fingerprint",
			entry: &model.DeadLetterEntry{
				Stage: model.StageExtract,
				Kind:  model.FailureExtractionParse,
			},
			wantErr: true,
			errMsg:  "invalid fingerprint",
		},
		{
			name: "missing stage",
			entry: &model.DeadLetterEntry{
				Fingerprint: validFp,
				Kind:        model.FailureExtractionParse,
			},
			wantErr: true,
			errMsg:  "missing stage",
		},
		{
			name: "missing failure kind",
			entry: &model.DeadLetterEntry{
				Fingerprint: validFp,
				Stage:       model.StageExtract,
			},
			wantErr: true,
			errMsg:  "missing failure kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDeadLetter(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateDeadLetter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateDeadLetter() error should contain %s, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateAudit(t *testing.T) {
	validFp := model.Fingerprint{SourceID: "drive-1", ContentHash: "abc123"}

	tests := []struct {
		entry   *model.AuditEntry
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name: "valid entry",
			entry: &model.AuditEntry{
				Fingerprint: validFp,
				FromState:   model.StateDiscovered,
				ToState:     model.StateClaimed,
				Actor:       model.ActorSystem,
			},
			wantErr: false,
		},
		{
			name: "empty from state is valid",
			entry: &model.AuditEntry{
				Fingerprint: validFp,
				ToState:     model.StateDeadLetter,
				Actor:       model.ActorReplay,
			},
			wantErr: false,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantErr: true,
			errMsg:  "entry",
		},
		{
			name: "missing target state",
			entry: &model.AuditEntry{
				Fingerprint: validFp,
				FromState:   model.StateDiscovered,
				Actor:       model.ActorSystem,
			},
			wantErr: true,
			errMsg:  "missing target state",
		},
		{
			name: "missing actor",
			entry: &model.AuditEntry{
				Fingerprint: validFp,
				FromState:   model.StateDiscovered,
				ToState:     model.StateClaimed,
			},
			wantErr: true,
			errMsg:  "missing actor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAudit(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAudit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateAudit() error should contain %s, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateReview(t *testing.T) {
	validFp := model.Fingerprint{SourceID: "drive-1", ContentHash: "abc123"}

	tests := []struct {
		rec     *model.ReviewRecord
		name    string
		errMsg  string
		wantErr bool
	}{
		{
			name: "valid record",
			rec: &model.ReviewRecord{
				Fingerprint: validFp,
				Reason:      model.RuleTotalMismatch,
			},
			wantErr: false,
		},
		{
			name:    "nil record",
			rec:     nil,
			wantErr: true,
			errMsg:  "record",
		},
		{
			name: "missing reason",
			rec: &model.ReviewRecord{
				Fingerprint: validFp,
			},
			wantErr: true,
			errMsg:  "missing reason",
		},
		{
			name: "missing fingerprint",
			rec: &model.ReviewRecord{
				Reason: model.RuleLowConfidence,
			},
			wantErr: true,
			errMsg:  "invalid fingerprint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReview(tt.rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateReview() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("validateReview() error should contain %s, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateReplayStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  model.ReplayStatus
		wantErr bool
	}{
		{name: "pending", status: model.ReplayPending, wantErr: false},
		{name: "replayed", status: model.ReplayReplayed, wantErr: false},
		{name: "abandoned", status: model.ReplayAbandoned, wantErr: false},
		{name: "empty", status: "", wantErr: true},
		{name: "unknown", status: "RESOLVED", wantErr: true},
		{name: "lowercase", status: "pending", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReplayStatus(tt.status)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateReplayStatus(%q) error = %v, wantErr %v", tt.status, err, tt.wantErr)
			}
		})
	}
}
