package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/lectoria/identity/internal/common"
)

// Register prompts for profile details and creates an identity on the server.
func (a *App) Register(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Enter full name", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Register(ctx, name, username, email, password); err != nil {
		fmt.Println(err.Error())
		return err
	}

	fmt.Println("Registered. You can now log in.")
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}
	defer common.WipeByteArray(password)

	pair, err := a.client.Login(ctx, username, password)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	a.accessToken = pair.AccessToken
	a.refreshToken = pair.RefreshToken
	a.userName = username
	fmt.Println("Logged in.")
	return nil
}

// Refresh rotates the current session's token pair.
func (a *App) Refresh(ctx context.Context) error {
	pair, err := a.client.Refresh(ctx, a.accessToken, a.refreshToken)
	if err != nil {
		fmt.Println(err.Error())
		return err
	}

	a.accessToken = pair.AccessToken
	a.refreshToken = pair.RefreshToken
	fmt.Println("Session refreshed.")
	return nil
}

// Logout closes the current session and forgets its tokens.
func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx, a.accessToken, a.refreshToken); err != nil {
		fmt.Println(err.Error())
		return err
	}

	a.clearSession()
	fmt.Println("Logged out.")
	return nil
}
