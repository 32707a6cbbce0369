package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "chatctl",
		Short: "CLI client for the chat service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Chat service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID (defaults to the server's default user)")

	// send
	var chatFlag string
	var searchFlag bool
	sendCmd := &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Send a chat message and stream the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(apiFlag, userFlag, chatFlag, args[0], searchFlag, os.Stdout, os.Stderr)
		},
	}
	sendCmd.Flags().StringVarP(&chatFlag, "chat", "c", "", "Existing conversation ID")
	sendCmd.Flags().BoolVarP(&searchFlag, "search", "s", false, "Force a web search for this turn")
	rootCmd.AddCommand(sendCmd)

	// history
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(apiFlag, map[string]interface{}{"action": "getHistory", "userId": userFlag}, os.Stdout)
		},
	}
	rootCmd.AddCommand(historyCmd)

	// show
	showCmd := &cobra.Command{
		Use:   "show CHAT_ID",
		Short: "Show one conversation with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(apiFlag, map[string]interface{}{"action": "getConversation", "chatId": args[0]}, os.Stdout)
		},
	}
	rootCmd.AddCommand(showCmd)

	// rename
	renameCmd := &cobra.Command{
		Use:   "rename CHAT_ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(apiFlag, map[string]interface{}{"action": "renameSession", "chatId": args[0], "title": args[1]}, os.Stdout)
		},
	}
	rootCmd.AddCommand(renameCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete CHAT_ID",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(apiFlag, map[string]interface{}{"action": "deleteSession", "chatId": args[0]}, os.Stdout)
		},
	}
	rootCmd.AddCommand(deleteCmd)

	// feedback
	var commentFlag string
	feedbackCmd := &cobra.Command{
		Use:   "feedback MEMORY_ID TYPE",
		Short: "Record feedback (positive|negative|neutral) on a memory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"action": "feedback", "memoryId": args[0], "type": args[1]}
			if commentFlag != "" {
				payload["comment"] = commentFlag
			}
			return runAction(apiFlag, payload, os.Stdout)
		},
	}
	feedbackCmd.Flags().StringVarP(&commentFlag, "comment", "m", "", "Optional feedback comment")
	rootCmd.AddCommand(feedbackCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
