package service

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"campustrade-api/internal/model"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
	minUsernameLength = 2
	maxUsernameLength = 20
	maxDepartment     = 120
	maxBio            = 1000
)

// UpdateProfile applies the non-nil fields of patch to the user's profile.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (*model.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if err := checkUsername(name); err != nil {
			return nil, err
		}
		u.Username = name
	}
	if patch.StudentID != nil {
		id := strings.ToUpper(strings.TrimSpace(*patch.StudentID))
		if id == "" {
			u.StudentID = nil
		} else {
			if !validStudentID(id) {
				return nil, invalid("student_id", "student_id must be 8-12 letters or digits")
			}
			u.StudentID = &id
		}
	}
	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		if phone != "" && !validPhone(phone) {
			return nil, invalid("phone", "phone must be 10 digits starting with 09")
		}
		u.Phone = phone
	}
	if patch.Department != nil {
		dept := strings.TrimSpace(*patch.Department)
		if utf8.RuneCountInString(dept) > maxDepartment {
			return nil, invalid("department", "department must be at most 120 characters")
		}
		u.Department = dept
	}
	if patch.Bio != nil {
		bio := strings.TrimSpace(*patch.Bio)
		if utf8.RuneCountInString(bio) > maxBio {
			return nil, invalid("bio", "bio must be at most 1000 characters")
		}
		u.Bio = bio
	}

	if err := s.store.Users().UpdateProfile(ctx, u); err != nil {
		if isDuplicate(err) {
			return nil, ErrStudentIDTaken
		}
		return nil, storeErr("failed to update profile", err)
	}
	s.log.Info("profile updated", zap.String("user_id", u.ID))
	return u, nil
}

// ChangePassword replaces the user's password after checking the current one.
// Issued tokens stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return storeErr("failed to get user", err)
	}
	if u == nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	if err := checkPassword("new_password", next); err != nil {
		return err
	}
	if current == next {
		return ErrPasswordUnchanged
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return storeErr("failed to hash password", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return storeErr("failed to update password", err)
	}
	s.log.Info("password changed", zap.String("user_id", u.ID))
	return nil
}

// UserStats summarises the user's listings, completed deals and ratings.
func (s *AuthService) UserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	listings, err := s.store.Listings().CountByOwner(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to count listings", err)
	}
	bought, err := s.store.Transactions().CountByRole(ctx, userID, model.RoleBuyer)
	if err != nil {
		return nil, storeErr("failed to count purchases", err)
	}
	sold, err := s.store.Transactions().CountByRole(ctx, userID, model.RoleSeller)
	if err != nil {
		return nil, storeErr("failed to count sales", err)
	}
	counts, err := s.store.Reviews().RatingCounts(ctx, userID)
	if err != nil {
		return nil, storeErr("failed to load ratings", err)
	}
	ratings := ratingStats(counts)

	return &model.UserStats{
		ActiveListings:     listings[model.ListingActive],
		SoldListings:       listings[model.ListingSold],
		CompletedPurchases: bought[model.TxCompleted],
		CompletedSales:     sold[model.TxCompleted],
		AverageRating:      ratings.Average,
		ReviewCount:        ratings.Total,
	}, nil
}

func checkUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minUsernameLength || n > maxUsernameLength {
		return invalid("username", "username must be 2-20 characters")
	}
	if !ValidUsername(name) {
		return invalid("username", "username may only contain letters, digits and underscores")
	}
	return nil
}

func checkPassword(field, pw string) error {
	if len(pw) < minPasswordLength {
		return invalid(field, field+" must be at least 8 characters")
	}
	if len(pw) > maxPasswordLength {
		return invalid(field, field+" must be at most 72 bytes")
	}
	if !StrongPassword(pw) {
		return invalid(field, field+" must contain both letters and digits")
	}
	return nil
}

// ValidUsername reports whether name holds only letters, digits and underscores.
func ValidUsername(name string) bool {
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// StrongPassword reports whether pw mixes letters and digits.
func StrongPassword(pw string) bool {
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func validStudentID(id string) bool {
	if len(id) < 8 || len(id) > 12 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func validPhone(phone string) bool {
	if len(phone) != 10 || !strings.HasPrefix(phone, "09") {
		return false
	}
	for i := 2; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}
