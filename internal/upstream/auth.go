package upstream

import (
	"context"
	"net/http"
)

type sendOTPRequest struct {
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
}

type loginOTPRequest struct {
	Phone   string `json:"phone"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

// LoginResult is the backend's answer to a successful OTP login
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID    int64  `json:"id"`
		Phone string `json:"phone"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

// SendOTP asks the backend to text a login code to the given phone number
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	req := sendOTPRequest{Phone: phone, Purpose: "login"}
	return c.do(ctx, "send_otp", http.MethodPost, "/api/auth/send-otp", "", req, nil)
}

// LoginWithOTP exchanges a verified code for a bearer token
func (c *Client) LoginWithOTP(ctx context.Context, phone, code string) (*LoginResult, error) {
	req := loginOTPRequest{Phone: phone, Code: code, Purpose: "login"}
	var result LoginResult
	if err := c.do(ctx, "login_otp", http.MethodPost, "/api/auth/login-otp", "", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
