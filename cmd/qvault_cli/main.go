package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math/big"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lidofinance/qvault/client/api/http_api/responses"
)

const (
	flagListenAddr = "listen_addr"
)

func init() {
	rootCmd.PersistentFlags().String(flagListenAddr, "localhost:8080", "Listen Address")
}

var rootCmd = &cobra.Command{
	Use:   "qvault_cli",
	Short: "qvault client cli utilities implementation",
}

func main() {
	rootCmd.AddCommand(
		proposeActionCommand(),
		confirmActionCommand(),
		revokeConfirmationCommand(),
		notifyDepositCommand(),
		getActionsCommand(),
		getActionCommand(),
		getConfirmationsCommand(),
		getSignersCommand(),
		getAddressCommand(),
		getAuditLogCommand(),
		saveOffsetCommand(),
		getOffsetCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute root command: %v", err)
	}
}

func rawGetRequest(url string) (*responses.BaseResponse, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response responses.BaseResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func rawPostRequest(url string, contentType string, data []byte) (*responses.BaseResponse, error) {
	resp, err := http.Post(url,
		contentType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response responses.BaseResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

// parseWei validates a decimal wei amount before it is sent to the daemon.
func parseWei(arg string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(arg, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid value %q, expected a non-negative wei amount", arg)
	}
	return value, nil
}

func proposeActionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "propose [target] [value_wei] [payload_file]",
		Args:  cobra.RangeArgs(2, 3),
		Short: "proposes an action for the vault signers to confirm",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			value, err := parseWei(args[1])
			if err != nil {
				return err
			}

			var payload []byte
			if len(args) == 3 {
				payload, err = ioutil.ReadFile(args[2])
				if err != nil {
					return fmt.Errorf("failed to read payload file: %w", err)
				}
			}

			reqBody, err := json.Marshal(map[string]interface{}{
				"target":  args[0],
				"value":   value.String(),
				"payload": payload,
			})
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}

			resp, err := rawPostRequest(fmt.Sprintf("http://%s/propose", listenAddr),
				"application/json", reqBody)
			if err != nil {
				return fmt.Errorf("failed to propose action: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to propose action: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func actionIdBody(arg string) ([]byte, error) {
	actionID, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action ID: %w", err)
	}
	return json.Marshal(map[string]uint64{"actionID": actionID})
}

func confirmActionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm [action_id]",
		Args:  cobra.ExactArgs(1),
		Short: "confirms a pending action; the second confirmation executes it",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			reqBody, err := actionIdBody(args[0])
			if err != nil {
				return err
			}

			resp, err := rawPostRequest(fmt.Sprintf("http://%s/confirm", listenAddr),
				"application/json", reqBody)
			if err != nil {
				return fmt.Errorf("failed to confirm action: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to confirm action: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func revokeConfirmationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [action_id]",
		Args:  cobra.ExactArgs(1),
		Short: "revokes this node's confirmation of a pending action",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			reqBody, err := actionIdBody(args[0])
			if err != nil {
				return err
			}

			resp, err := rawPostRequest(fmt.Sprintf("http://%s/revoke", listenAddr),
				"application/json", reqBody)
			if err != nil {
				return fmt.Errorf("failed to revoke confirmation: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to revoke confirmation: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func notifyDepositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notify_deposit [from] [value_wei]",
		Args:  cobra.ExactArgs(2),
		Short: "records an observed deposit in the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			value, err := parseWei(args[1])
			if err != nil {
				return err
			}

			reqBody, err := json.Marshal(map[string]string{
				"from":  args[0],
				"value": value.String(),
			})
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}

			resp, err := rawPostRequest(fmt.Sprintf("http://%s/deposit", listenAddr),
				"application/json", reqBody)
			if err != nil {
				return fmt.Errorf("failed to notify deposit: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to notify deposit: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func getActionsRequest(host string) (*ActionsResponse, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/getActions", host))
	if err != nil {
		return nil, fmt.Errorf("failed to get actions: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response ActionsResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func getActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_actions",
		Short: "returns all actions known to the vault with their statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			actions, err := getActionsRequest(listenAddr)
			if err != nil {
				return fmt.Errorf("failed to get actions: %w", err)
			}
			if actions.ErrorMessage != "" {
				return fmt.Errorf("failed to get actions: %s", actions.ErrorMessage)
			}
			for _, act := range actions.Result {
				fmt.Print(renderAction(act))
				fmt.Println("-----------------------------------------------------")
			}
			return nil
		},
	}
}

func getActionRequest(host string, actionID uint64) (*ActionResponse, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/getAction?actionID=%d", host, actionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response ActionResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func getActionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_action [action_id]",
		Args:  cobra.ExactArgs(1),
		Short: "returns a single action with its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			actionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse action ID: %w", err)
			}
			act, err := getActionRequest(listenAddr, actionID)
			if err != nil {
				return fmt.Errorf("failed to get action: %w", err)
			}
			if act.ErrorMessage != "" {
				return fmt.Errorf("failed to get action: %s", act.ErrorMessage)
			}
			fmt.Print(renderAction(act.Result))
			return nil
		},
	}
}

func getConfirmationsRequest(host string, actionID uint64) (*ConfirmationsResponse, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/getConfirmations?actionID=%d", host, actionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmations: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response ConfirmationsResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func getConfirmationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_confirmations [action_id]",
		Args:  cobra.ExactArgs(1),
		Short: "returns the addresses whose confirmations of the action stand",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			actionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse action ID: %w", err)
			}
			confirmations, err := getConfirmationsRequest(listenAddr, actionID)
			if err != nil {
				return fmt.Errorf("failed to get confirmations: %w", err)
			}
			if confirmations.ErrorMessage != "" {
				return fmt.Errorf("failed to get confirmations: %s", confirmations.ErrorMessage)
			}
			for _, addr := range confirmations.Result {
				fmt.Println(addr.Hex())
			}
			return nil
		},
	}
}

func getSignersRequest(host string) (*SignersResponse, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/getSigners", host))
	if err != nil {
		return nil, fmt.Errorf("failed to get signers: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response SignersResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func getSignersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_signers",
		Short: "returns the fixed signer set of the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			signers, err := getSignersRequest(listenAddr)
			if err != nil {
				return fmt.Errorf("failed to get signers: %w", err)
			}
			if signers.ErrorMessage != "" {
				return fmt.Errorf("failed to get signers: %s", signers.ErrorMessage)
			}
			for i, addr := range signers.Result {
				fmt.Printf("Signer %d: %s\n", i, addr.Hex())
			}
			return nil
		},
	}
}

func getAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_address",
		Short: "returns this node's signer address",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			resp, err := rawGetRequest(fmt.Sprintf("http://%s/getAddress", listenAddr))
			if err != nil {
				return fmt.Errorf("failed to get node's address: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to get node's address: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func getAuditLogRequest(host string, actionID string) (*AuditLogResponse, error) {
	url := fmt.Sprintf("http://%s/getAuditLog", host)
	if actionID != "" {
		url = fmt.Sprintf("http://%s/getActionAuditLog?actionID=%s", host, actionID)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	defer resp.Body.Close()
	responseBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var response AuditLogResponse
	if err = json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	return &response, nil
}

func getAuditLogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_audit_log [action_id]",
		Args:  cobra.RangeArgs(0, 1),
		Short: "returns the audit trail, optionally filtered to one action",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			actionID := ""
			if len(args) == 1 {
				if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
					return fmt.Errorf("failed to parse action ID: %w", err)
				}
				actionID = args[0]
			}

			auditLog, err := getAuditLogRequest(listenAddr, actionID)
			if err != nil {
				return fmt.Errorf("failed to get audit log: %w", err)
			}
			if auditLog.ErrorMessage != "" {
				return fmt.Errorf("failed to get audit log: %s", auditLog.ErrorMessage)
			}
			for _, record := range auditLog.Result {
				fmt.Println(renderRecord(record))
			}
			return nil
		},
	}
}

func saveOffsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save_offset [offset]",
		Short: "saves a new offset for a storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			offset, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse uint: %w", err)
			}
			req := map[string]uint64{"offset": offset}
			data, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			resp, err := rawPostRequest(fmt.Sprintf("http://%s/saveOffset", listenAddr), "application/json", data)
			if err != nil {
				return fmt.Errorf("failed to save offset: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to save offset: %v", resp.ErrorMessage)
			}
			fmt.Println(resp.Result.(string))
			return nil
		},
	}
}

func getOffsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get_offset",
		Short: "returns a current offset for the storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr, err := cmd.Flags().GetString(flagListenAddr)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			resp, err := rawGetRequest(fmt.Sprintf("http://%s/getOffset", listenAddr))
			if err != nil {
				return fmt.Errorf("failed to get offset: %w", err)
			}
			if resp.ErrorMessage != "" {
				return fmt.Errorf("failed to get offset: %v", resp.ErrorMessage)
			}
			fmt.Println(uint64(resp.Result.(float64)))
			return nil
		},
	}
}
