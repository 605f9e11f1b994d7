// Package sdk is the gomobile surface of the UniCred client.
//
// Exported methods are safe to call from any host thread; structured results
// come back as JSON inside gomobile-safe Buffers.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/unicred/unicred-cli/internal/api"
	"github.com/unicred/unicred-cli/internal/session"
	"github.com/unicred/unicred-cli/internal/share"
)

var sdkLog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "sdk").Logger()

// logPanic records a recovered panic from an SDK entry point.
func logPanic(op string, r interface{}) {
	sdkLog.Error().
		Str("op", op).
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("panic in SDK entry point")
}

// sdkCall runs fn on the dispatch queue with a panic guard and marshals its
// result into a Buffer.
func sdkCall[T any](c *Client, op string, fn func(ctx context.Context) (T, error)) (*Buffer, error) {
	return dispatchCall(c.dispatch, func() (buf *Buffer, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(op, r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()

		value, err := fn(context.Background())
		if err != nil {
			c.emitError(err)
			return nil, err
		}
		out, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return newBufferFromBytes(out), nil
	})
}

// LoginBuffer authenticates with email and password and returns the user
// profile as JSON. The session is persisted; subsequent calls need no login.
func (c *Client) LoginBuffer(email, password string) (*Buffer, error) {
	return sdkCall(c, "Login", func(ctx context.Context) (*session.Profile, error) {
		return c.api.Login(ctx, email, password)
	})
}

// Logout clears the persisted session.
func (c *Client) Logout() error {
	_, err := dispatchCall(c.dispatch, func() (res struct{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic("Logout", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return struct{}{}, c.api.Logout()
	})
	return err
}

// SendOTP requests a one-time password for the password reset flow.
func (c *Client) SendOTP(email string) error {
	_, err := sdkCall(c, "SendOTP", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.SendOTP(ctx, email)
	})
	return err
}

// ResetPassword sets a new password using an OTP obtained via SendOTP.
func (c *Client) ResetPassword(email, otp, newPassword string) error {
	_, err := sdkCall(c, "ResetPassword", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.ResetPassword(ctx, email, otp, newPassword)
	})
	return err
}

// RoleBuffer returns the active session role ("GUEST" when signed out).
func (c *Client) RoleBuffer() (*Buffer, error) {
	return dispatchCall(c.dispatch, func() (buf *Buffer, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic("Role", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return newBufferFromString(string(c.store.Current().Role())), nil
	})
}

// ProfileBuffer returns the signed-in user's profile as JSON.
func (c *Client) ProfileBuffer() (*Buffer, error) {
	return sdkCall(c, "Profile", func(ctx context.Context) (*session.Profile, error) {
		profile := c.store.Current().Profile
		if profile == nil {
			return nil, fmt.Errorf("not signed in")
		}
		return profile, nil
	})
}

// AttendanceBuffer returns per-course attendance for a term as JSON.
func (c *Client) AttendanceBuffer(term string) (*Buffer, error) {
	return sdkCall(c, "Attendance", func(ctx context.Context) ([]api.CourseAttendance, error) {
		return c.api.Attendance(ctx, term)
	})
}

// GradesBuffer returns course grades for a term as JSON.
func (c *Client) GradesBuffer(term string) (*Buffer, error) {
	return sdkCall(c, "Grades", func(ctx context.Context) ([]api.CourseGrade, error) {
		return c.api.Grades(ctx, term)
	})
}

// TimetableBuffer returns the week's schedule as JSON.
func (c *Client) TimetableBuffer(weekOf string) (*Buffer, error) {
	return sdkCall(c, "Timetable", func(ctx context.Context) ([]api.TimetableSlot, error) {
		return c.api.Timetable(ctx, weekOf)
	})
}

// RoadmapBuffer returns the program roadmap as JSON.
func (c *Client) RoadmapBuffer() (*Buffer, error) {
	return sdkCall(c, "Roadmap", func(ctx context.Context) ([]api.RoadmapNode, error) {
		return c.api.Roadmap(ctx)
	})
}

// CredentialsBuffer returns the holder's issued credentials as JSON.
func (c *Client) CredentialsBuffer() (*Buffer, error) {
	return sdkCall(c, "Credentials", func(ctx context.Context) ([]api.Credential, error) {
		return c.api.Credentials(ctx)
	})
}

// CredentialBuffer returns one credential (including its signed token) as
// JSON.
func (c *Client) CredentialBuffer(id string) (*Buffer, error) {
	return sdkCall(c, "Credential", func(ctx context.Context) (*api.Credential, error) {
		return c.api.CredentialByID(ctx, id)
	})
}

// VerifyCredentialBuffer submits a credential token for server verification
// and returns the verdict as JSON.
func (c *Client) VerifyCredentialBuffer(credentialJWT string) (*Buffer, error) {
	return sdkCall(c, "VerifyCredential", func(ctx context.Context) (*api.VerifyResult, error) {
		return c.api.VerifyCredential(ctx, credentialJWT)
	})
}

// VerifyLinkBuffer parses a scanned unicred://verify link and submits the
// embedded credential for server verification.
func (c *Client) VerifyLinkBuffer(link string) (*Buffer, error) {
	return sdkCall(c, "VerifyLink", func(ctx context.Context) (*api.VerifyResult, error) {
		credential, err := share.ParseLink(link)
		if err != nil {
			return nil, err
		}
		return c.api.VerifyCredential(ctx, credential)
	})
}

// PeekCredentialBuffer decodes a credential token's claims for display,
// without verifying its signature. Use VerifyCredentialBuffer for the
// actual verdict.
func (c *Client) PeekCredentialBuffer(credentialJWT string) (*Buffer, error) {
	return sdkCall(c, "PeekCredential", func(ctx context.Context) (*api.CredentialClaims, error) {
		return api.PeekCredentialUnverified(credentialJWT)
	})
}

// ShareLinkBuffer fetches a credential by id and returns its verification
// deep link.
func (c *Client) ShareLinkBuffer(credentialID string) (*Buffer, error) {
	return dispatchCall(c.dispatch, func() (buf *Buffer, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic("ShareLink", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()

		credential, err := c.api.CredentialByID(context.Background(), credentialID)
		if err != nil {
			c.emitError(err)
			return nil, err
		}
		return newBufferFromString(share.BuildLink(credential.JWT)), nil
	})
}

// ShareQRBuffer fetches a credential by id and returns its verification link
// rendered as a size x size PNG.
func (c *Client) ShareQRBuffer(credentialID string, size int) (*Buffer, error) {
	return dispatchCall(c.dispatch, func() (buf *Buffer, err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic("ShareQR", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()

		credential, err := c.api.CredentialByID(context.Background(), credentialID)
		if err != nil {
			c.emitError(err)
			return nil, err
		}
		png, err := share.PNG(share.BuildLink(credential.JWT), size)
		if err != nil {
			return nil, err
		}
		return newBufferFromBytes(png), nil
	})
}
