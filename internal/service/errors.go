package service

import (
	"errors"

	"campustrade-api/internal/repository"
	"campustrade-api/pkg/apierror"
)

// Failure reasons returned by the marketplace services. Match them with
// errors.Is; each also matches its apierror category.
var (
	ErrUserNotFound         = apierror.NotFound("user not found").WithReason("USER_NOT_FOUND")
	ErrListingNotFound      = apierror.NotFound("listing not found").WithReason("LISTING_NOT_FOUND")
	ErrTransactionNotFound  = apierror.NotFound("transaction not found").WithReason("TRANSACTION_NOT_FOUND")
	ErrNotificationNotFound = apierror.NotFound("notification not found").WithReason("NOTIFICATION_NOT_FOUND")
	ErrMessageNotFound      = apierror.NotFound("message not found").WithReason("MESSAGE_NOT_FOUND")
	ErrReceiverNotFound     = apierror.NotFound("receiver not found").WithReason("RECEIVER_NOT_FOUND")

	ErrNotOwner        = apierror.Forbidden("only the owner can do this").WithReason("NOT_OWNER")
	ErrNotParticipant  = apierror.Forbidden("not a participant of this transaction").WithReason("NOT_PARTICIPANT")
	ErrNotSeller       = apierror.Forbidden("only the seller can do this").WithReason("NOT_SELLER")
	ErrNotBuyer        = apierror.Forbidden("only the buyer can do this").WithReason("NOT_BUYER")
	ErrNotAdmin        = apierror.Forbidden("administrator access required").WithReason("NOT_ADMIN")
	ErrSelfTransaction = apierror.Forbidden("you cannot make an offer on your own listing").WithReason("SELF_TRANSACTION")
	ErrSelfMessage     = apierror.Forbidden("you cannot message yourself").WithReason("SELF_MESSAGE")
	ErrNotRecipient    = apierror.Forbidden("only the recipient can do this").WithReason("NOT_RECIPIENT")
	ErrNotSender       = apierror.Forbidden("only the sender can do this").WithReason("NOT_SENDER")

	ErrListingNotTransactable = apierror.InvalidTransition("listing is not available").WithReason("LISTING_NOT_TRANSACTABLE")
	ErrInvalidTransition      = apierror.InvalidTransition("transaction cannot move to that status").WithReason("INVALID_TRANSITION")
	ErrListingHeld            = apierror.InvalidTransition("listing is already held by another transaction").WithReason("LISTING_HELD")
	ErrListingStatus          = apierror.InvalidTransition("listing status cannot be changed that way").WithReason("LISTING_STATUS")
	ErrListingHasTransactions = apierror.InvalidTransition("listing has transactions and cannot be purged").WithReason("LISTING_HAS_TRANSACTIONS")

	ErrDuplicatePendingOffer = apierror.ValidationError("you already have a pending offer on this listing").WithReason("DUPLICATE_PENDING_OFFER")
	ErrAlreadyReviewed       = apierror.ValidationError("you already reviewed this transaction").WithReason("ALREADY_REVIEWED")
	ErrNotCompleted          = apierror.ValidationError("only completed transactions can be reviewed").WithReason("NOT_COMPLETED")
	ErrInvalidRating         = apierror.ValidationError("rating must be between 1 and 5").WithReason("INVALID_RATING")
	ErrEmptyContent          = apierror.ValidationError("message content cannot be empty").WithReason("EMPTY_CONTENT")
	ErrReasonRequired        = apierror.ValidationError("a reason is required").WithReason("REASON_REQUIRED")
	ErrSoldListing           = apierror.ValidationError("sold listings cannot be edited").WithReason("LISTING_SOLD")
	ErrInvalidCategory       = apierror.ValidationError("unknown category").WithReason("INVALID_CATEGORY")

	ErrWrongPassword     = apierror.ValidationError("current password is incorrect").WithReason("WRONG_PASSWORD")
	ErrPasswordUnchanged = apierror.ValidationError("new password must differ from the current one").WithReason("PASSWORD_UNCHANGED")

	ErrEmailTaken     = apierror.Conflict("email is already registered").WithReason("EMAIL_TAKEN")
	ErrStudentIDTaken = apierror.Conflict("student id is already registered").WithReason("STUDENT_ID_TAKEN")

	ErrInvalidCredentials = apierror.Unauthorized("invalid login or password").WithReason("INVALID_CREDENTIALS")
	ErrInvalidToken       = apierror.Unauthorized("invalid or expired token").WithReason("INVALID_TOKEN")
)

// invalid builds a validation error for one field.
func invalid(field, message string) error {
	return apierror.ValidationError(message, apierror.FieldError{Field: field, Message: message})
}

// storeErr wraps a repository failure. Errors that already carry a category
// pass through unchanged.
func storeErr(message string, err error) error {
	if err == nil {
		return nil
	}
	if apierror.As(err) != nil {
		return err
	}
	return apierror.Persistence(message, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}

func isPersistence(err error) bool {
	return errors.Is(err, apierror.ErrPersistence)
}
