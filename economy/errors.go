package economy

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Code identifies a business-rule rejection.
type Code string

const (
	CodeInvalidAmount          Code = "invalid_amount"
	CodeBelowMinimum           Code = "below_minimum"
	CodeInsufficientBalance    Code = "insufficient_balance"
	CodeClaimTooEarly          Code = "claim_too_early"
	CodeWalletNotConnected     Code = "wallet_not_connected"
	CodeInvalidWalletAddress   Code = "invalid_wallet_address"
	CodeUnknownTask            Code = "unknown_task"
	CodeTaskNotStarted         Code = "task_not_started"
	CodeTaskAlreadyRewarded    Code = "task_already_rewarded"
	CodeTaskRejected           Code = "task_rejected"
	CodeTaskNotReviewable      Code = "task_not_reviewable"
	CodeInvalidReferralCode    Code = "invalid_referral_code"
	CodeSelfReferral           Code = "self_referral"
	CodeAlreadyReferred        Code = "already_referred"
	CodeReferralNotConfirmable Code = "referral_not_confirmable"
	CodeInvalidTaskData        Code = "invalid_task_data"
	CodeNegativeBalance        Code = "negative_balance"
)

// RuleError is a rejection computed locally from a user snapshot. Two rule
// errors match under errors.Is when their codes are equal, so callers can test
// against the sentinels below while still showing the specific message.
type RuleError struct {
	Code    Code
	Message string
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *RuleError) Is(target error) bool {
	var other *RuleError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func newRuleError(code Code, format string, args ...any) *RuleError {
	return &RuleError{Code: code, Message: printer.Sprintf(format, args...)}
}

var printer = message.NewPrinter(language.English)

var (
	ErrInvalidAmount          = &RuleError{Code: CodeInvalidAmount, Message: "Please enter a valid amount"}
	ErrBelowMinimum           = &RuleError{Code: CodeBelowMinimum, Message: "Amount is below the minimum"}
	ErrInsufficientBalance    = &RuleError{Code: CodeInsufficientBalance, Message: "Insufficient balance"}
	ErrClaimTooEarly          = &RuleError{Code: CodeClaimTooEarly, Message: "Daily airdrop already claimed"}
	ErrWalletNotConnected     = &RuleError{Code: CodeWalletNotConnected, Message: "Please connect your wallet first"}
	ErrInvalidWalletAddress   = &RuleError{Code: CodeInvalidWalletAddress, Message: "Please enter a valid wallet address"}
	ErrUnknownTask            = &RuleError{Code: CodeUnknownTask, Message: "Unknown task"}
	ErrTaskNotStarted         = &RuleError{Code: CodeTaskNotStarted, Message: "Start the task before verifying it"}
	ErrTaskAlreadyRewarded    = &RuleError{Code: CodeTaskAlreadyRewarded, Message: "Task reward already credited"}
	ErrTaskRejected           = &RuleError{Code: CodeTaskRejected, Message: "Task was rejected"}
	ErrTaskNotReviewable      = &RuleError{Code: CodeTaskNotReviewable, Message: "Task is not waiting for review"}
	ErrInvalidReferralCode    = &RuleError{Code: CodeInvalidReferralCode, Message: "Referral code not found"}
	ErrSelfReferral           = &RuleError{Code: CodeSelfReferral, Message: "You cannot use your own referral code"}
	ErrAlreadyReferred        = &RuleError{Code: CodeAlreadyReferred, Message: "You have already been referred"}
	ErrReferralNotConfirmable = &RuleError{Code: CodeReferralNotConfirmable, Message: "Referral is not pending"}
	ErrInvalidTaskData        = &RuleError{Code: CodeInvalidTaskData, Message: "Please provide the details this task needs"}
	ErrNegativeBalance        = &RuleError{Code: CodeNegativeBalance, Message: "Balance cannot go negative"}
)

// ClaimTooEarlyError reports when the next daily claim opens.
type ClaimTooEarlyError struct {
	NextClaimAt time.Time
	Remaining   time.Duration
}

func (e *ClaimTooEarlyError) Error() string {
	return "Next claim in " + FormatWait(e.Remaining)
}

func (e *ClaimTooEarlyError) Is(target error) bool {
	return target == ErrClaimTooEarly
}

// FormatWait renders a wait as hours and minutes, e.g. "3h 12m".
func FormatWait(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
