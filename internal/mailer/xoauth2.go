package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/emersion/go-sasl"
)

// NewXOAUTH2Client creates a SASL client for XOAUTH2 authentication.
// The mechanism is a single round trip: the initial response carries the
// whole credential and the server answers with success or an error blob.
func NewXOAUTH2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

type xoauth2Client struct {
	username string
	token    string
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// A challenge after the initial response is the server's JSON error
	// status; there is nothing useful to answer
	return nil, sasl.ErrUnexpectedServerChallenge
}

// saslSMTPAuth adapts a sasl.Client to net/smtp's Auth interface so the
// same mechanism implementation serves the stdlib SMTP client.
type saslSMTPAuth struct {
	client sasl.Client
}

// NewSMTPAuth wraps a SASL client for use with net/smtp
func NewSMTPAuth(client sasl.Client) smtp.Auth {
	return &saslSMTPAuth{client: client}
}

func (a *saslSMTPAuth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	return a.client.Start()
}

func (a *saslSMTPAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	resp, err := a.client.Next(fromServer)
	if err != nil {
		return nil, fmt.Errorf("sasl exchange failed: %w", err)
	}
	return resp, nil
}
