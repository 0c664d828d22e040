package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cube-pilot/internal/assessor"
	"github.com/ziadkadry99/cube-pilot/internal/config"
	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/cube"
	"github.com/ziadkadry99/cube-pilot/internal/queryval"
	"github.com/ziadkadry99/cube-pilot/internal/report"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

var chatReport bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive query session with step-by-step clarification",
	Long: `Starts an interactive session. Ambiguous questions are resolved through
targeted clarification questions, and every interpretation is confirmed
before a query executes. Type "exit" to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return err
		}
		fetcher, err := createFetcherFromConfig(cfg)
		if err != nil {
			return err
		}
		catalog, _, err := fetcher.FetchCatalog(cmd.Context(), cfg.ViewName)
		if err != nil {
			return err
		}

		session := &chatSession{
			cfg:       cfg,
			assessor:  assessor.New(provider, cfg.Model, catalog),
			validator: queryval.NewValidator(cfg.SuggestionMaxDistance),
			client:    createCubeClientFromConfig(cfg),
			catalog:   catalog,
			store:     store,
			sess:      conversation.NewSessionContext(uuid.NewString()),
		}
		session.assessor.SetVerbose(verbose)

		if err := store.EnsureSession(cmd.Context(), session.sess.SessionID); err != nil {
			return err
		}

		fmt.Printf("Connected to view %s (%d measures, %d dimensions).\n",
			catalog.ViewName, len(catalog.Measures), len(catalog.Dimensions))
		fmt.Println("Ask a question, or type \"exit\" to quit.")

		if err := session.run(cmd.Context()); err != nil {
			return err
		}

		if chatReport {
			return session.writeReport(cmd.Context())
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatReport, "report", false, "write an HTML transcript on exit")
	rootCmd.AddCommand(chatCmd)
}

// chatSession holds the interactive loop's state.
type chatSession struct {
	cfg       *config.Config
	assessor  *assessor.Assessor
	validator *queryval.Validator
	client    *cube.Client
	catalog   *schema.Catalog
	store     *conversation.Store
	sess      *conversation.SessionContext

	originalQuery string
	pendingAspect string
	awaitingReply bool
}

func (c *chatSession) run(ctx context.Context) error {
	for {
		input, err := readLine("You")
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		c.record(ctx, "user", input, "")
		if err := c.handleInput(ctx, input); err != nil {
			return err
		}
	}
}

func (c *chatSession) handleInput(ctx context.Context, input string) error {
	if c.awaitingReply {
		c.awaitingReply = false
		resp := c.assessor.ReceiveClarification(ctx, input, c.pendingAspect, c.originalQuery, c.sess)
		if !resp.Success {
			c.say(ctx, "Sorry, something went wrong: "+resp.Error, string(assessor.TypeError))
			return nil
		}
	} else {
		c.originalQuery = input
		c.sess.AddMessage("user", input)
	}

	return c.assess(ctx)
}

// assess runs the assessment and follows the state machine until the turn
// needs user input again.
func (c *chatSession) assess(ctx context.Context) error {
	resp := c.assessor.AssessQuery(ctx, c.originalQuery, c.sess)
	if !resp.Success {
		c.say(ctx, "Sorry, something went wrong: "+resp.Error, string(assessor.TypeError))
		return nil
	}

	if resp.State == assessor.StateClarificationRequest {
		flags, _ := resp.Data["ambiguity_flags"].(assessor.Flags)
		return c.clarify(ctx, flags)
	}
	return c.confirm(ctx)
}

func (c *chatSession) clarify(ctx context.Context, flags assessor.Flags) error {
	resp := c.assessor.RequestClarification(ctx, c.originalQuery, flags, c.sess, nil)
	if !resp.Success {
		c.say(ctx, "Sorry, something went wrong: "+resp.Error, string(assessor.TypeError))
		return nil
	}

	question, _ := resp.Data["clarification_question"].(string)
	aspect, _ := resp.Data["ambiguous_aspect"].(string)
	suggestions, _ := resp.Data["suggestions"].([]string)

	c.say(ctx, question, string(assessor.TypeClarification))
	if len(suggestions) > 0 {
		fmt.Printf("  Options: %s\n", strings.Join(suggestions, " / "))
	}

	c.pendingAspect = aspect
	c.awaitingReply = true
	return nil
}

func (c *chatSession) confirm(ctx context.Context) error {
	resp := c.assessor.ConfirmQuery(ctx, c.originalQuery, c.sess)
	if !resp.Success {
		c.say(ctx, "Sorry, something went wrong: "+resp.Error, string(assessor.TypeError))
		return nil
	}

	message, _ := resp.Data["confirmation_message"].(string)
	interpreted, _ := resp.Data["interpreted_parameters"].(*queryval.Query)
	c.say(ctx, message, string(assessor.TypeConfirmation))

	confirmed, err := confirmPrompt("Proceed")
	if err != nil {
		return err
	}
	if !confirmed {
		c.record(ctx, "user", "no", "")
		rejection := c.assessor.HandleRejection(ctx, c.originalQuery, c.sess)
		if rejection.Success {
			if msg, ok := rejection.Data["rephrasing_prompt"].(string); ok {
				c.say(ctx, msg, string(assessor.TypeRejection))
			}
		}
		return nil
	}
	c.record(ctx, "user", "yes", "")

	return c.construct(ctx, interpreted)
}

func (c *chatSession) construct(ctx context.Context, interpreted *queryval.Query) error {
	resp := c.assessor.ConstructQuery(ctx, interpreted, c.originalQuery)
	if !resp.Success {
		c.say(ctx, "Sorry, something went wrong: "+resp.Error, string(assessor.TypeError))
		return nil
	}

	query, _ := resp.Data["cube_query"].(*queryval.Query)
	description, _ := resp.Data["query_description"].(string)

	validation := c.validator.Validate(query, c.catalog)
	if !validation.Valid {
		c.say(ctx, "The constructed query did not validate:", string(assessor.TypeError))
		for _, e := range validation.Errors {
			fmt.Printf("  - %s\n", e)
		}
		for invalid, suggestion := range validation.Suggestions {
			fmt.Printf("  Did you mean '%s' instead of '%s'?\n", suggestion, invalid)
		}
		return nil
	}

	result, err := c.client.Execute(ctx, query)
	if err != nil {
		c.say(ctx, "Query execution failed: "+err.Error(), string(assessor.TypeError))
		return nil
	}

	if description != "" {
		c.say(ctx, description, string(assessor.TypeCubeQuery))
	}
	printRows(result.Rows)
	fmt.Printf("\n%d row(s)\n", result.RowCount)

	if result.RowCount > 0 {
		if export, err := confirmPrompt("Export to CSV"); err == nil && export {
			path, err := report.WriteCSV(c.cfg.DataDir, result)
			if err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", path)
		}
	}
	return nil
}

// say prints an assistant message and records it in the transcript.
func (c *chatSession) say(ctx context.Context, message, responseType string) {
	fmt.Printf("\n%s\n\n", message)
	c.sess.AddMessage("assistant", message)
	c.record(ctx, "assistant", message, responseType)
}

func (c *chatSession) record(ctx context.Context, role, content, responseType string) {
	if err := c.store.AddMessage(ctx, c.sess.SessionID, role, content, responseType); err != nil && verbose {
		fmt.Printf("(transcript: %v)\n", err)
	}
}

func (c *chatSession) writeReport(ctx context.Context) error {
	messages, err := c.store.GetMessages(ctx, c.sess.SessionID)
	if err != nil {
		return err
	}
	r := &report.TranscriptReport{
		SessionID: c.sess.SessionID,
		Title:     "Cube Pilot session",
		Messages:  messages,
	}
	path, err := r.WriteHTML(c.cfg.DataDir)
	if err != nil {
		return err
	}
	fmt.Printf("Transcript written to %s\n", path)
	return nil
}

func readLine(label string) (string, error) {
	prompt := promptui.Prompt{Label: label}
	return prompt.Run()
}

func confirmPrompt(label string) (bool, error) {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}
