package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"unimarket/internal/client"
	"unimarket/internal/credstore"
	"unimarket/internal/domain/entity"
	"unimarket/internal/infrastructure/ratelimit"
	ws "unimarket/internal/infrastructure/websocket"
	"unimarket/internal/usecase"
	"unimarket/pkg/config"
	apperrors "unimarket/pkg/errors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	api := client.New(cfg.BaseURL, cfg.RequestTimeout)
	store := credstore.New(cfg.CredentialsFile)

	sessions := usecase.NewSessionUseCase(api, store)
	api.SetTokenProvider(sessions)
	api.SetRefresher(sessions)

	directory := usecase.NewDirectoryUseCase(api)
	stream := usecase.NewStreamUseCase(api, cfg.AckWindow)
	tracker := usecase.NewTransactionTracker(api)
	limiter := ratelimit.NewLimiter(cfg.SendBurst, cfg.SendRefill)
	dispatcher := usecase.NewDispatcherUseCase(api, api, stream, directory, tracker, limiter)

	channel := ws.NewChannel(cfg.BaseURL, sessions)
	dispatcher.SetReceiptEmitter(channel)

	poller := newFallbackPoller(directory)

	channel.Subscribe(func(ev ws.Event) {
		switch ev.Type {
		case ws.EventMessage:
			directory.HandleEvent(ev, stream.Active())
			stream.HandleEvent(ev)
		case ws.EventAck:
			stream.HandleEvent(ev)
		case ws.EventPresence:
			directory.HandleEvent(ev, stream.Active())
		case ws.EventTransaction:
			tracker.HandleEvent(ev)
		case ws.EventDegraded:
			fmt.Println("! realtime connection degraded, falling back to periodic refresh")
			poller.start()
		case ws.EventConnected:
			poller.stop()
		}
	})

	sessions.Subscribe(func(s *entity.Session) {
		if s == nil {
			channel.Stop()
			poller.stop()
			stream.SetSelf("")
			dispatcher.SetSelf("")
			return
		}
		stream.SetSelf(s.User.ID)
		dispatcher.SetSelf(s.User.ID)
		channel.Start(ctx)
	})

	in := bufio.NewScanner(os.Stdin)

	session, err := sessions.Restore(ctx)
	if err != nil && !apperrors.IsUnauthorized(err) {
		log.Fatalf("Failed to restore session: %v", err)
	}
	if session == nil {
		session = promptLogin(ctx, sessions, in)
	}
	fmt.Printf("Signed in as %s (%s)\n", session.User.Username, session.User.Campus)

	if err := directory.FetchNextPage(ctx); err != nil {
		fmt.Println("!", userMessage(err))
	}
	printConversations(directory.Conversations())

	repl(ctx, in, sessions, directory, stream, tracker, dispatcher, api)
}

func promptLogin(ctx context.Context, sessions *usecase.SessionUseCase, in *bufio.Scanner) *entity.Session {
	for {
		fmt.Print("Email: ")
		if !in.Scan() {
			os.Exit(0)
		}
		email := strings.TrimSpace(in.Text())

		fmt.Print("Password: ")
		if !in.Scan() {
			os.Exit(0)
		}
		password := in.Text()

		session, err := sessions.Login(ctx, email, password)
		if err != nil {
			fmt.Println("!", userMessage(err))
			continue
		}
		return session
	}
}

func repl(
	ctx context.Context,
	in *bufio.Scanner,
	sessions *usecase.SessionUseCase,
	directory *usecase.DirectoryUseCase,
	stream *usecase.StreamUseCase,
	tracker *usecase.TransactionTracker,
	dispatcher *usecase.DispatcherUseCase,
	api *client.Client,
) {
	fmt.Println(`Type "help" for commands.`)

	for {
		prompt := "> "
		if active := stream.Active(); active != "" {
			prompt = active + "> "
		}
		fmt.Print(prompt)
		if !in.Scan() {
			return
		}

		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		cmd, rest := splitCommand(line)

		var err error
		switch cmd {
		case "help":
			printHelp()

		case "chats":
			err = directory.FetchNextPage(ctx)
			printConversations(directory.Conversations())

		case "open":
			if rest == "" {
				fmt.Println("usage: open <counterpart-id>")
				continue
			}
			if err = stream.Open(ctx, rest); err == nil {
				if err = dispatcher.MarkAsRead(ctx, rest); err != nil {
					fmt.Println("!", userMessage(err))
					err = nil
				}
				printMessages(stream.Messages())
			}

		case "close":
			stream.Close()

		case "older":
			if err = stream.LoadOlder(ctx); err == nil {
				printMessages(stream.Messages())
			}

		case "send":
			err = requireActive(stream, func(conversationID string) error {
				_, sendErr := dispatcher.SendMessage(ctx, conversationID, rest, nil)
				return sendErr
			})

		case "attach":
			err = requireActive(stream, func(conversationID string) error {
				file, openErr := os.Open(rest)
				if openErr != nil {
					return apperrors.BadRequest("cannot open "+rest, openErr)
				}
				defer file.Close()
				_, sendErr := dispatcher.SendMessage(ctx, conversationID, "", &usecase.Attachment{
					Filename: filepath.Base(rest),
					Content:  file,
				})
				return sendErr
			})

		case "retry":
			_, err = dispatcher.RetryMessage(ctx, rest)

		case "discard":
			stream.Discard(rest)

		case "buy":
			var tx *entity.Transaction
			if tx, err = tracker.Create(ctx, rest, ""); err == nil {
				fmt.Printf("Transaction %s created (%s)\n", tx.ID, tx.Status)
			}

		case "confirm":
			txID, milestoneName := splitCommand(rest)
			milestone := entity.TransactionSellerConfirmed
			if milestoneName == "receipt" {
				milestone = entity.TransactionBuyerConfirmed
			}
			var tx *entity.Transaction
			if tx, err = dispatcher.ConfirmTransactionMilestone(ctx, txID, milestone); err == nil {
				fmt.Printf("Transaction %s is now %s\n", tx.ID, tx.Status)
				if tracker.ShouldPromptRating(tx.ID) {
					fmt.Printf("You can now rate this purchase: rate %s <1-5> [comment]\n", tx.ID)
				}
			}

		case "cancel":
			var tx *entity.Transaction
			if tx, err = dispatcher.CancelTransaction(ctx, rest); err == nil {
				fmt.Printf("Transaction %s cancelled\n", tx.ID)
			}

		case "rate":
			err = rateCommand(ctx, tracker, rest)

		case "products":
			items, _, searchErr := api.SearchProducts(ctx, rest, "", 1, 20)
			err = searchErr
			for _, p := range items {
				fmt.Printf("  %s  %-30s  $%.2f  (%s)\n", p.ID, p.Title, p.Price, p.Status)
			}

		case "product":
			var product *entity.Product
			if product, err = api.GetProduct(ctx, rest); err == nil {
				fmt.Printf("%s  $%.2f  (%s)\n", product.Title, product.Price, product.Status)
				if product.Description != "" {
					fmt.Println(" ", product.Description)
				}
				fmt.Printf("  seller: %s   category: %s\n", product.SellerID, product.Category)
			}

		case "reviews":
			reviews, _, reviewErr := api.ListSellerReviews(ctx, rest, 1, 20)
			err = reviewErr
			if len(reviews) == 0 && err == nil {
				fmt.Println("No reviews for this seller yet.")
			}
			for _, r := range reviews {
				stars := strings.Repeat("*", r.Rating)
				fmt.Printf("  %-5s %s\n", stars, r.Comment)
			}

		case "fav":
			err = api.AddFavorite(ctx, rest)

		case "unfav":
			err = api.RemoveFavorite(ctx, rest)

		case "favs":
			items, _, favErr := api.ListFavorites(ctx, 1, 20)
			err = favErr
			for _, p := range items {
				fmt.Printf("  %s  %-30s  $%.2f\n", p.ID, p.Title, p.Price)
			}

		case "logout":
			sessions.Logout(ctx)
			fmt.Println("Signed out.")
			return

		case "quit", "exit":
			return

		default:
			fmt.Printf("unknown command %q, try \"help\"\n", cmd)
		}

		if err != nil {
			fmt.Println("!", userMessage(err))
		}
	}
}

func rateCommand(ctx context.Context, tracker *usecase.TransactionTracker, rest string) error {
	txID, rest := splitCommand(rest)
	ratingStr, comment := splitCommand(rest)
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		return apperrors.BadRequest("usage: rate <transaction-id> <1-5> [comment]", nil)
	}
	tx, err := tracker.SubmitRating(ctx, txID, rating, comment)
	if err != nil {
		return err
	}
	fmt.Printf("Thanks! Transaction %s is now %s\n", tx.ID, tx.Status)
	return nil
}

func requireActive(stream *usecase.StreamUseCase, fn func(conversationID string) error) error {
	active := stream.Active()
	if active == "" {
		return apperrors.BadRequest("no open conversation, use: open <counterpart-id>", nil)
	}
	if err := fn(active); err != nil {
		return err
	}
	printMessages(stream.Messages())
	return nil
}

func printConversations(items []entity.Conversation) {
	if len(items) == 0 {
		fmt.Println("No conversations yet.")
		return
	}
	for _, conv := range items {
		marker := " "
		if conv.Online {
			marker = "*"
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d unread]", conv.UnreadCount)
		}
		fmt.Printf("%s %s  %-20s  %s%s\n", marker, conv.CounterpartID, conv.CounterpartName, conv.LastMessage, unread)
	}
}

func printMessages(items []entity.Message) {
	for _, msg := range items {
		who := "them"
		switch msg.Direction {
		case entity.DirectionOwn:
			who = "you"
		case entity.DirectionSystem:
			who = "sys"
		}
		body := msg.Content
		if msg.AttachmentURL != "" {
			body = strings.TrimSpace(body + " [attachment: " + msg.AttachmentURL + "]")
		}
		fmt.Printf("  %s %-4s %s (%s)\n", msg.CreatedAt.Format("15:04"), who, body, msg.Status)
	}
}

func printHelp() {
	fmt.Println(`  chats                         list conversations (fetches next page)
  open <counterpart-id>         open a conversation
  older                         load older history
  send <text>                   send a message
  attach <path>                 send a file
  retry <temp-id>               retry a failed message
  discard <temp-id>             drop a failed message
  close                         close the conversation
  buy <product-id>              start a transaction
  confirm <tx-id> delivery|receipt
  cancel <tx-id>                cancel a transaction
  rate <tx-id> <1-5> [comment]  rate a received purchase
  products [query]              browse products
  product <product-id>          product details
  reviews <seller-id>           a seller's ratings
  fav/unfav <product-id>, favs  favorites
  logout / quit`)
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// userMessage folds an error into the line shown to the user, including the
// remaining cooldown on rate-limited sends.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.Code == "TOO_MANY_REQUESTS" && appErr.WaitTime > 0 {
			return fmt.Sprintf("%s (retry in %s)", appErr.Message, appErr.WaitTime.Round(time.Second))
		}
		return appErr.Message
	}
	return err.Error()
}
