package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tyemirov/busclient/internal/busapi"
	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
)

// runWithRuntime opens the configured runtime for the duration of one command.
func runWithRuntime(action func(command *cobra.Command, arguments []string, runtime *clientRuntime) error) func(*cobra.Command, []string) error {
	return func(command *cobra.Command, arguments []string) error {
		clientConfig, configErr := clientConfigFrom(command)
		if configErr != nil {
			return configErr
		}
		runtime, runtimeErr := openRuntime(command.Context(), clientConfig)
		if runtimeErr != nil {
			return runtimeErr
		}
		defer func() { _ = runtime.Close() }()
		return commandError(action(command, arguments, runtime))
	}
}

func printJSON(writer io.Writer, value any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func newLoginCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the issued token pair",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			if decisionErr := runtime.decisionError(runtime.guard.RedirectIfAuthenticated(command.Context())); decisionErr != nil {
				return decisionErr
			}
			username, _ := command.Flags().GetString("username")
			password, _ := command.Flags().GetString("password")
			if strings.TrimSpace(username) == "" {
				return errors.New("login: --username is required")
			}
			if password == "" {
				line, readErr := bufio.NewReader(command.InOrStdin()).ReadString('\n')
				if readErr != nil && !errors.Is(readErr, io.EOF) {
					return fmt.Errorf("login: read password: %w", readErr)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("login: password is required")
			}
			tokens, loginErr := runtime.client.Login(command.Context(), apiclient.LoginRequest{UsernameOrEmail: username, Password: password})
			if loginErr != nil {
				return loginErr
			}
			_, printErr := fmt.Fprintf(command.OutOrStdout(), "logged in (token expires in %ds)\n", tokens.ExpiresIn)
			return printErr
		}),
	}
	command.Flags().String("username", "", "Username or email")
	command.Flags().String("password", "", "Password; read from stdin when empty")
	return command
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Notify the backend and discard the stored tokens",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			logoutErr := runtime.client.Logout(command.Context())
			if _, printErr := fmt.Fprintln(command.OutOrStdout(), "logged out"); printErr != nil {
				return printErr
			}
			return logoutErr
		}),
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the authenticated principal",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			if decisionErr := runtime.decisionError(runtime.guard.RequireAuth(command.Context())); decisionErr != nil {
				return decisionErr
			}
			principal, fetchErr := runtime.client.CurrentUser(command.Context())
			if fetchErr != nil {
				return fetchErr
			}
			return printJSON(command.OutOrStdout(), principal)
		}),
	}
}

type statusReport struct {
	LoggedIn          bool       `json:"logged_in"`
	AccessFingerprint string     `json:"access_fingerprint,omitempty"`
	Username          string     `json:"username,omitempty"`
	Role              string     `json:"role,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Expired           bool       `json:"expired"`
	HasRefreshToken   bool       `json:"has_refresh_token"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Inspect the stored session without contacting the backend",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			report, reportErr := readStatus(command.Context(), runtime.store, time.Now().UTC())
			if reportErr != nil {
				return reportErr
			}
			return printJSON(command.OutOrStdout(), report)
		}),
	}
}

func readStatus(ctx context.Context, store credentials.Store, now time.Time) (statusReport, error) {
	accessToken, found, accessErr := store.AccessToken(ctx)
	if accessErr != nil {
		return statusReport{}, accessErr
	}
	_, hasRefreshToken, refreshErr := store.RefreshToken(ctx)
	if refreshErr != nil {
		return statusReport{}, refreshErr
	}
	report := statusReport{LoggedIn: found, HasRefreshToken: hasRefreshToken}
	if !found {
		return report, nil
	}
	report.AccessFingerprint = credentials.Fingerprint(accessToken)
	if info, inspectErr := credentials.InspectAccessToken(accessToken); inspectErr == nil {
		report.Username = info.Username
		report.Role = info.Role
		report.Expired = info.Expired(now)
		if !info.ExpiresAt.IsZero() {
			expiresAt := info.ExpiresAt
			report.ExpiresAt = &expiresAt
		}
	}
	return report, nil
}

func newRequestCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Issue a raw call against the backend through the request layer",
		Args:  cobra.ExactArgs(2),
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			data, _ := command.Flags().GetString("data")
			headerValues, _ := command.Flags().GetStringArray("header")
			public, _ := command.Flags().GetBool("public")

			headers := http.Header{}
			for _, headerValue := range headerValues {
				name, value, ok := strings.Cut(headerValue, ":")
				if !ok || strings.TrimSpace(name) == "" {
					return fmt.Errorf("request: invalid header %q, expected Name: value", headerValue)
				}
				headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}
			options := apiclient.RequestOptions{Method: arguments[0], Headers: headers}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("request: --data must be valid JSON")
				}
				options.Body = json.RawMessage(data)
			}

			var result json.RawMessage
			var requestErr error
			if public {
				result, requestErr = runtime.client.Public(command.Context(), arguments[1], options)
			} else {
				result, requestErr = runtime.client.Request(command.Context(), arguments[1], options)
			}
			if requestErr != nil {
				return requestErr
			}
			if len(result) == 0 {
				return nil
			}
			return printJSON(command.OutOrStdout(), result)
		}),
	}
	command.Flags().String("data", "", "JSON request body")
	command.Flags().StringArrayP("header", "H", nil, "Extra header as 'Name: value' (repeatable)")
	command.Flags().Bool("public", false, "Send without credentials and without renewal")
	return command
}

func addPageFlags(command *cobra.Command) {
	command.Flags().Int("offset", 0, "Listing offset")
	command.Flags().Int("limit", 0, "Listing page size (max 100)")
}

func pageFromFlags(command *cobra.Command) busapi.Page {
	offset, _ := command.Flags().GetInt("offset")
	limit, _ := command.Flags().GetInt("limit")
	return busapi.Page{Offset: offset, Limit: limit}
}

func newRoutesCommand() *cobra.Command {
	routesCmd := &cobra.Command{Use: "routes", Short: "Browse bus routes"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List routes",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			origin, _ := command.Flags().GetString("origin_city")
			destination, _ := command.Flags().GetString("destination_city")
			status, _ := command.Flags().GetString("status")
			items, listErr := runtime.routes.List(command.Context(), busapi.RouteFilter{
				Page:            pageFromFlags(command),
				OriginCity:      origin,
				DestinationCity: destination,
				Status:          status,
			})
			if listErr != nil {
				return listErr
			}
			return printJSON(command.OutOrStdout(), items)
		}),
	}
	addPageFlags(listCmd)
	listCmd.Flags().String("origin_city", "", "Filter by origin city")
	listCmd.Flags().String("destination_city", "", "Filter by destination city")
	listCmd.Flags().String("status", "", "Filter by status (ACTIVE, INACTIVE, SEASONAL, DELETED)")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one route",
		Args:  cobra.ExactArgs(1),
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			route, getErr := runtime.routes.Get(command.Context(), arguments[0])
			if getErr != nil {
				return getErr
			}
			return printJSON(command.OutOrStdout(), route)
		}),
	}

	routesCmd.AddCommand(listCmd, getCmd)
	return routesCmd
}

func newBusesCommand() *cobra.Command {
	busesCmd := &cobra.Command{Use: "buses", Short: "Browse buses (requires a session)"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List buses",
		Args:  cobra.NoArgs,
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			if decisionErr := runtime.decisionError(runtime.guard.RequireAuth(command.Context())); decisionErr != nil {
				return decisionErr
			}
			busNumber, _ := command.Flags().GetString("bus_number")
			manufacturer, _ := command.Flags().GetString("manufacturer")
			model, _ := command.Flags().GetString("model")
			busType, _ := command.Flags().GetString("type")
			status, _ := command.Flags().GetString("status")
			items, listErr := runtime.buses.List(command.Context(), busapi.BusFilter{
				Page:         pageFromFlags(command),
				BusNumber:    busNumber,
				Manufacturer: manufacturer,
				Model:        model,
				Type:         busType,
				Status:       status,
			})
			if listErr != nil {
				return listErr
			}
			return printJSON(command.OutOrStdout(), items)
		}),
	}
	addPageFlags(listCmd)
	listCmd.Flags().String("bus_number", "", "Filter by bus number")
	listCmd.Flags().String("manufacturer", "", "Filter by manufacturer")
	listCmd.Flags().String("model", "", "Filter by model")
	listCmd.Flags().String("type", "", "Filter by bus type")
	listCmd.Flags().String("status", "", "Filter by status")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one bus",
		Args:  cobra.ExactArgs(1),
		RunE: runWithRuntime(func(command *cobra.Command, arguments []string, runtime *clientRuntime) error {
			if decisionErr := runtime.decisionError(runtime.guard.RequireAuth(command.Context())); decisionErr != nil {
				return decisionErr
			}
			bus, getErr := runtime.buses.Get(command.Context(), arguments[0])
			if getErr != nil {
				return getErr
			}
			return printJSON(command.OutOrStdout(), bus)
		}),
	}

	busesCmd.AddCommand(listCmd, getCmd)
	return busesCmd
}
