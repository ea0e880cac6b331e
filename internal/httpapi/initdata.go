package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TelegramUser соответствует полю "user" из initData Mini App.
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Language  string `json:"language_code"`
}

const (
	initDataMaxAge   = 24 * time.Hour
	initDataMaxDrift = 5 * time.Minute
)

// ValidateInitData проверяет подпись Mini App и возвращает пользователя.
// Некоторые клиенты присылают '+' вместо %2B (он декодируется как пробел),
// поэтому проверяется и такой вариант.
func ValidateInitData(initData, botToken string, now time.Time) (TelegramUser, error) {
	if initData == "" {
		return TelegramUser{}, errors.New("initData is empty")
	}
	if botToken == "" {
		return TelegramUser{}, errors.New("botToken is empty")
	}

	secret := webAppSecret(botToken)

	var lastErr error
	for _, candidate := range []string{initData, strings.ReplaceAll(initData, "+", "%2B")} {
		user, err := verify(candidate, secret, now)
		if err == nil {
			return user, nil
		}
		lastErr = err
	}
	return TelegramUser{}, fmt.Errorf("validation failed: %w", lastErr)
}

func verify(initData string, secret []byte, now time.Time) (TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return TelegramUser{}, fmt.Errorf("parse query: %w", err)
	}

	received := values.Get("hash")
	if received == "" {
		return TelegramUser{}, errors.New("hash is missing")
	}
	values.Del("hash")

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(values)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(received)) {
		return TelegramUser{}, errors.New("signature mismatch")
	}

	if raw := values.Get("auth_date"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TelegramUser{}, fmt.Errorf("auth_date: %w", err)
		}
		authTime := time.Unix(ts, 0)
		if now.Sub(authTime) > initDataMaxAge {
			return TelegramUser{}, errors.New("initData expired")
		}
		if authTime.Sub(now) > initDataMaxDrift {
			return TelegramUser{}, errors.New("initData is from the future")
		}
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return TelegramUser{}, fmt.Errorf("user: %w", err)
	}
	if user.ID == 0 {
		return TelegramUser{}, errors.New("user id is 0")
	}
	return user, nil
}

// dataCheckString склеивает пары key=value, отсортированные по ключу, по одной на строку.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}
	return strings.Join(parts, "\n")
}

func webAppSecret(token string) []byte {
	h := hmac.New(sha256.New, []byte("WebAppData"))
	h.Write([]byte(token))
	return h.Sum(nil)
}
