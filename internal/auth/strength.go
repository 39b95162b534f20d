package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const DefaultPwnedPasswordsURL = "https://api.pwnedpasswords.com"

// PasswordStrengthChecker rejects short or overlong passwords and anything
// that appears in the Have I Been Pwned corpus. Only the first five hex
// characters of the SHA-1 leave the process.
type PasswordStrengthChecker struct {
	Client   *http.Client
	BaseURL  string
	FailOpen bool
}

func NewPasswordStrengthChecker(baseURL string, failOpen bool) *PasswordStrengthChecker {
	if baseURL == "" {
		baseURL = DefaultPwnedPasswordsURL
	}
	return &PasswordStrengthChecker{
		Client:   &http.Client{Timeout: 5 * time.Second},
		BaseURL:  strings.TrimRight(baseURL, "/"),
		FailOpen: failOpen,
	}
}

func (c *PasswordStrengthChecker) Verify(ctx context.Context, password string) (bool, error) {
	if len(password) < 8 || len(password) > 255 {
		return false, nil
	}

	sum := sha1.Sum([]byte(password))
	hash := hex.EncodeToString(sum[:])
	prefix, suffix := hash[:5], hash[5:]

	pwned, err := c.lookupRange(ctx, prefix, suffix)
	if err != nil {
		if c.FailOpen {
			log.Printf("password strength: range lookup failed, allowing: %v", err)
			return true, nil
		}
		return false, err
	}
	return !pwned, nil
}

func (c *PasswordStrengthChecker) lookupRange(ctx context.Context, prefix, suffix string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("pwned passwords: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashSuffix, _, _ := strings.Cut(line, ":")
		if strings.EqualFold(hashSuffix, suffix) {
			return true, nil
		}
	}
	return false, scanner.Err()
}
