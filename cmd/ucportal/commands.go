package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/ucportal/internal/config"
	"github.com/kalambet/ucportal/internal/flows"
	"github.com/kalambet/ucportal/internal/storage"
)

// getInto GETs path and decodes the envelope's response into v.
func getInto(ctx context.Context, path string, v any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	return decodeResult(resp, v)
}

// --- phone ---

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Look up CUCM phones",
}

var phoneShowCmd = &cobra.Command{
	Use:   "show <device-name>",
	Short: "Show a phone's configuration as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var phone any
		if err := getInto(cmd.Context(), "/api/axl/phones/"+url.PathEscape(args[0]), &phone); err != nil {
			return err
		}
		return printJSON(os.Stdout, phone)
	},
}

func init() {
	phoneCmd.AddCommand(phoneShowCmd)
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Look up CUCM directory users",
}

var userShowCmd = &cobra.Command{
	Use:   "show <userid>",
	Short: "Show a user and their devices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := url.PathEscape(args[0])
		var user, devices any
		if err := getInto(cmd.Context(), "/api/uds/users/"+id, &user); err != nil {
			return err
		}
		if err := getInto(cmd.Context(), "/api/uds/users/"+id+"/devices", &devices); err != nil {
			return err
		}
		return printJSON(os.Stdout, map[string]any{"user": user, "devices": devices})
	},
}

var userSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Search users by first or last name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"name": {strings.Join(args, " ")}}
		var res struct {
			Users []struct {
				UserName    string `json:"userName"`
				FirstName   string `json:"firstName"`
				LastName    string `json:"lastName"`
				PhoneNumber string `json:"phoneNumber"`
				Email       string `json:"email"`
			} `json:"users"`
		}
		if err := getInto(cmd.Context(), "/api/uds/users?"+q.Encode(), &res); err != nil {
			return err
		}
		if len(res.Users) == 0 {
			fmt.Println("No users found.")
			return nil
		}
		rows := make([][]string, 0, len(res.Users))
		for _, u := range res.Users {
			rows = append(rows, []string{u.UserName, u.FirstName + " " + u.LastName, u.PhoneNumber, u.Email})
		}
		return printTable(os.Stdout, []string{"USERID", "NAME", "EXTENSION", "EMAIL"}, rows)
	},
}

func init() {
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userSearchCmd)
}

// --- device ---

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Real-time device registration",
}

var deviceStatusCmd = &cobra.Command{
	Use:   "status <name>...",
	Short: "Show registration status (names may use * wildcards)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		q := url.Values{"name": args}
		if status != "" {
			q.Set("status", status)
		}
		var devices []struct {
			Node      string `json:"node"`
			Name      string `json:"name"`
			DirNumber string `json:"dirNumber"`
			Status    string `json:"status"`
			IPAddress string `json:"ipAddress"`
		}
		if err := getInto(cmd.Context(), "/api/ris/devices?"+q.Encode(), &devices); err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No matching devices registered.")
			return nil
		}
		rows := make([][]string, 0, len(devices))
		for _, d := range devices {
			st := d.Status
			if st == "Registered" {
				st = colorize(colorGreen, st)
			} else {
				st = colorize(colorYellow, st)
			}
			rows = append(rows, []string{d.Name, d.DirNumber, st, d.IPAddress, d.Node})
		}
		return printTable(os.Stdout, []string{"DEVICE", "DN", "STATUS", "IP", "NODE"}, rows)
	},
}

func init() {
	deviceStatusCmd.Flags().String("status", "", "Any, Registered, UnRegistered, Rejected")
	deviceCmd.AddCommand(deviceStatusCmd)
}

// --- space ---

var spaceCmd = &cobra.Command{
	Use:   "space",
	Short: "CMS spaces",
}

var spaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List spaces from the local mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var spaces []storage.CMSSpace
		if err := getInto(cmd.Context(), fmt.Sprintf("/api/cms/spaces?limit=%d", limit), &spaces); err != nil {
			return err
		}
		if len(spaces) == 0 {
			fmt.Println("No spaces mirrored yet. Run: ucportal space sync")
			return nil
		}
		rows := make([][]string, 0, len(spaces))
		for _, s := range spaces {
			rows = append(rows, []string{s.Name, s.URI, s.CallID, s.SyncedAt.Local().Format("2006-01-02 15:04")})
		}
		return printTable(os.Stdout, []string{"NAME", "URI", "CALL ID", "SYNCED"}, rows)
	},
}

var spaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a coSpace on CMS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uri, _ := cmd.Flags().GetString("uri")
		callID, _ := cmd.Flags().GetString("call-id")
		passcode, _ := cmd.Flags().GetString("passcode")
		body := map[string]string{"name": args[0]}
		if uri != "" {
			body["uri"] = uri
		}
		if callID != "" {
			body["callId"] = callID
		}
		if passcode != "" {
			body["passcode"] = passcode
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/cms/cospaces", body)
		if err != nil {
			return err
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := decodeResult(resp, &created); err != nil {
			return err
		}
		printSuccess("Created space %s (%s)", args[0], created.ID)
		return nil
	},
}

var spaceSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Queue a mirror of CMS coSpaces into the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		prune, _ := cmd.Flags().GetBool("prune")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/cms/spaces/sync", map[string]any{"filter": filter, "prune": prune})
		if err != nil {
			return err
		}
		var queued struct {
			JobID string `json:"jobId"`
		}
		if err := decodeResult(resp, &queued); err != nil {
			return err
		}
		printSuccess("Queued sync job %s", queued.JobID)
		return nil
	},
}

func init() {
	spaceListCmd.Flags().Int("limit", 100, "maximum number of spaces to list")
	spaceCreateCmd.Flags().String("uri", "", "URI user part")
	spaceCreateCmd.Flags().String("call-id", "", "numeric call ID")
	spaceCreateCmd.Flags().String("passcode", "", "guest passcode")
	spaceSyncCmd.Flags().String("filter", "", "only sync spaces matching this filter")
	spaceSyncCmd.Flags().Bool("prune", false, "remove mirrored spaces no longer on CMS (ignored with --filter)")
	spaceCmd.AddCommand(spaceListCmd, spaceCreateCmd, spaceSyncCmd)
}

// --- voicemail ---

var voicemailCmd = &cobra.Command{
	Use:   "voicemail",
	Short: "Voicemail provisioning",
}

var voicemailEnableCmd = &cobra.Command{
	Use:   "enable <userid>",
	Short: "Create a Unity Connection mailbox for a CUCM user and forward their line to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"userid": args[0]}
		for _, f := range []string{"template", "profile", "partition", "pin"} {
			if v, _ := cmd.Flags().GetString(f); v != "" {
				body[f] = v
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/workflows/voicemail", body)
		if err != nil {
			return err
		}
		var res struct {
			Extension string `json:"extension"`
			MailboxID string `json:"mailboxId"`
			Existing  bool   `json:"existing"`
			Steps     []struct {
				Step   string `json:"step"`
				Detail string `json:"detail"`
			} `json:"steps"`
		}
		if err := decodeResult(resp, &res); err != nil {
			return err
		}
		for _, s := range res.Steps {
			printStep("%s: %s", s.Step, s.Detail)
		}
		verb := "Created"
		if res.Existing {
			verb = "Reused"
		}
		printSuccess("%s mailbox %s for %s (ext %s)", verb, res.MailboxID, args[0], res.Extension)
		return nil
	},
}

func init() {
	voicemailEnableCmd.Flags().String("template", "", "Unity Connection user template alias")
	voicemailEnableCmd.Flags().String("profile", "", "CUCM voicemail profile for the line")
	voicemailEnableCmd.Flags().String("partition", "", "route partition of the user's line")
	voicemailEnableCmd.Flags().String("pin", "", "initial voicemail PIN")
	voicemailCmd.AddCommand(voicemailEnableCmd)
}

// --- results ---

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Call flow test results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded results, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _ := cmd.Flags().GetString("flow")
		limit, _ := cmd.Flags().GetInt("limit")
		q := url.Values{"limit": {strconv.Itoa(limit)}}
		if flow != "" {
			q.Set("callFlowId", flow)
		}
		var results []storage.Result
		if err := getInto(cmd.Context(), "/api/results?"+q.Encode(), &results); err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results recorded.")
			return nil
		}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				r.ExecutedAt.Local().Format("2006-01-02 15:04"),
				shortID(r.CallFlowID),
				outcomeLabel(r.Outcome),
				r.ExecutedBy,
				r.Notes,
			})
		}
		return printTable(os.Stdout, []string{"WHEN", "FLOW", "OUTCOME", "BY", "NOTES"}, rows)
	},
}

var resultsAddCmd = &cobra.Command{
	Use:   "add <call-flow-id> <pass|fail|blocked>",
	Short: "Record the outcome of a call flow run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome := strings.ToLower(args[1])
		if !storage.ValidOutcome(outcome) {
			return fmt.Errorf("outcome must be pass, fail or blocked, got %q", args[1])
		}
		notes, _ := cmd.Flags().GetString("notes")
		by, _ := cmd.Flags().GetString("by")
		if by == "" {
			by = os.Getenv("USER")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/results", storage.Result{
			CallFlowID: args[0],
			Outcome:    outcome,
			Notes:      notes,
			ExecutedBy: by,
		})
		if err != nil {
			return err
		}
		var res storage.Result
		if err := decodeResult(resp, &res); err != nil {
			return err
		}
		printSuccess("Recorded %s (%s)", outcomeLabel(res.Outcome), res.ID)
		return nil
	},
}

func init() {
	resultsListCmd.Flags().String("flow", "", "only results for this call flow id")
	resultsListCmd.Flags().Int("limit", 20, "maximum number of results to list")
	resultsAddCmd.Flags().String("notes", "", "free-form notes")
	resultsAddCmd.Flags().String("by", "", "who ran the flow (default $USER)")
	resultsCmd.AddCommand(resultsListCmd, resultsAddCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func outcomeLabel(o string) string {
	switch o {
	case storage.OutcomePass:
		return colorize(colorGreen, o)
	case storage.OutcomeFail:
		return colorize(colorRed, o)
	default:
		return colorize(colorYellow, o)
	}
}

// --- axl ---

var axlCmd = &cobra.Command{
	Use:   "axl",
	Short: "Raw AXL access",
}

var axlSQLCmd = &cobra.Command{
	Use:   "sql <select-statement>",
	Short: "Run a read-only SQL query against the CUCM database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/axl/sql", map[string]string{"query": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var res struct {
			Columns []string            `json:"columns"`
			Rows    []map[string]string `json:"rows"`
		}
		if err := decodeResult(resp, &res); err != nil {
			return err
		}
		if len(res.Rows) == 0 {
			fmt.Println("No rows.")
			return nil
		}
		rows := make([][]string, 0, len(res.Rows))
		for _, r := range res.Rows {
			row := make([]string, len(res.Columns))
			for i, c := range res.Columns {
				row[i] = r[c]
			}
			rows = append(rows, row)
		}
		return printTable(os.Stdout, res.Columns, rows)
	},
}

func init() {
	axlCmd.AddCommand(axlSQLCmd)
}

// --- flows ---

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Call flow definitions",
}

var flowsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Upsert call flows from YAML files by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			resp, err := client.send(cmd.Context(), http.MethodPost, "/api/call-flows/import", "application/yaml", f)
			f.Close()
			if err != nil {
				return err
			}
			var sum flows.Summary
			if err := decodeResult(resp, &sum); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			printSuccess("%s: %d created, %d updated", path, len(sum.Created), len(sum.Updated))
		}
		return nil
	},
}

var flowsCheckCmd = &cobra.Command{
	Use:   "check <file.yaml>...",
	Short: "Validate call flow files without importing them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defs, err := flows.Parse(f)
			f.Close()
			if err != nil {
				printError("%s: %v", path, err)
				failed++
				continue
			}
			printSuccess("%s: %d flows", path, len(defs))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files invalid", failed, len(args))
		}
		return nil
	},
}

var flowsWatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Import a directory of call flows and re-import on change (defaults to flows.dir)",
	Long: `Import every call flow file in a directory into the local database, then
keep watching it and re-import files as they are written. "ucportal start"
already does this for flows.dir; use this when the server is not running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir := cfg.Flows.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return fmt.Errorf("no directory given and flows.dir is not set")
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		sum, err := flows.ImportDir(store, dir)
		if err != nil {
			return err
		}
		printSuccess("%s: %d created, %d updated", dir, len(sum.Created), len(sum.Updated))

		w, err := flows.NewWatcher(store, dir)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		printStep("watching %s (Ctrl-C to stop)", dir)
		return w.Run(ctx)
	},
}

func init() {
	flowsCmd.AddCommand(flowsImportCmd, flowsCheckCmd, flowsWatchCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value (secrets go to the secret store)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
