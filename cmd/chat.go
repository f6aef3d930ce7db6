package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notechat/notechat/internal/chat"
	"github.com/notechat/notechat/internal/index"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	session, err := a.NewSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	renderer := newMarkdownRenderer(80)

	fmt.Printf("notechat %s\n", AppVersion)
	fmt.Println("Ask anything about your Notion workspace. Type /help for commands.")
	fmt.Printf("Session: %s\n\n", session.ID())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleChatCommand(input, session) {
				break
			}
			continue
		}

		answer, err := session.Ask(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Println(renderer.Render(answer.Text))
		printSources(answer.Sources)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	return nil
}

// handleChatCommand handles slash commands, returns true to exit the loop.
func handleChatCommand(input string, session *chat.Session) bool {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help   show this help")
		fmt.Println("  /clear  forget the conversation so far")
		fmt.Println("  /exit   leave the chat (Ctrl+D works too)")
		fmt.Println()
	case "/clear":
		session.Clear()
		fmt.Println("Conversation cleared.")
		fmt.Println()
	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true
	default:
		fmt.Printf("Unknown command %q. Type /help for commands.\n\n", input)
	}
	return false
}

// printSources lists the pages an answer was grounded on, closest first.
func printSources(hits []index.Hit) {
	if len(hits) == 0 {
		return
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", h.Category, h.Score))
	}
	fmt.Printf("Sources: %s\n", strings.Join(parts, ", "))
}
