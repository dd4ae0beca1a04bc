package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolftalk/wolftalk/client"
	"github.com/wolftalk/wolftalk/store"
)

func newConversationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List your direct message conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, me, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			dms := store.NewDirectMessageStore(a.api, a.logger)
			defer dms.Close()

			convs, err := dms.FetchRecent(ctx, me.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintln(out, "No conversations yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWITH\tLAST MESSAGE\tAT")
			for _, c := range convs {
				last, at := "", ""
				if c.LastMessage != nil {
					last = c.LastMessage.Content
					at = c.LastMessage.Timestamp.Local().Format("Jan 2 15:04")
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, store.Title(c, me.ID), last, at)
			}
			return tw.Flush()
		},
	}
}

func newChatCmd(a *app) *cobra.Command {
	var (
		send       string
		with       []int64
		groupTitle string
	)
	cmd := &cobra.Command{
		Use:   "chat [group id]",
		Short: "Read a conversation, send to it, or start a new one",
		Long: `Read a conversation, oldest message first. --send posts a message to it.
Without a group id, --with starts a new conversation with the given user ids.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, me, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			dms := store.NewDirectMessageStore(a.api, a.logger)
			defer dms.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if len(with) == 0 || send == "" {
					return fmt.Errorf("give a group id, or --with and --send to start a conversation")
				}
				conv, err := dms.CreateGroup(ctx, me.ID, client.NewConversation{
					ParticipantIDs: with,
					GroupTitle:     groupTitle,
					Content:        send,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Started conversation #%d: %s\n", conv.ID, store.Title(*conv, me.ID))
				return nil
			}

			groupID, err := parseID(args[0])
			if err != nil {
				return err
			}
			var msgs []client.DirectMessage
			if send != "" {
				msgs, err = dms.Send(ctx, me.ID, groupID, send)
			} else {
				msgs, err = dms.FetchGroup(ctx, groupID)
			}
			if err != nil {
				return err
			}
			printMessages(out, msgs, me.ID, dms.TakeScroll())
			return nil
		},
	}
	cmd.Flags().StringVarP(&send, "send", "s", "", "message to send")
	cmd.Flags().Int64SliceVar(&with, "with", nil, "user ids to start a conversation with")
	cmd.Flags().StringVar(&groupTitle, "title", "", "title of a new conversation")
	return cmd
}

func printMessages(w io.Writer, msgs []client.DirectMessage, me int64, latest bool) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for i, m := range msgs {
		who := m.Sender.DisplayName
		if who == "" {
			who = m.Sender.UnityID
		}
		if m.Sender.ID == me {
			who = "you"
		}
		marker := ""
		if latest && i == len(msgs)-1 {
			marker = "  <- latest"
		}
		fmt.Fprintf(w, "[%s] %s: %s%s\n", m.Timestamp.Local().Format("Jan 2 15:04"), who, m.Content, marker)
	}
}

func newFriendsCmd(a *app) *cobra.Command {
	var (
		add    int64
		status int64
	)
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "List your friends, send a request, or check a friendship",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			users, _, err := a.signIn(ctx)
			if err != nil {
				return err
			}
			defer users.Close()
			out := cmd.OutOrStdout()

			switch {
			case add != 0:
				msg, err := users.AddFriend(ctx, add)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, msg)
			case status != 0:
				st, err := users.FriendStatus(ctx, status)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, friendStatusText(st))
			default:
				friends, err := users.Friends(ctx)
				if err != nil {
					return err
				}
				if len(friends) == 0 {
					fmt.Fprintln(out, "No friends yet.")
					return nil
				}
				names := make([]string, len(friends))
				for i, f := range friends {
					names[i] = fmt.Sprintf("%s (%d)", f.UnityID, f.ID)
				}
				fmt.Fprintln(out, strings.Join(names, "\n"))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&add, "add", 0, "send a friend request to this user id")
	cmd.Flags().Int64Var(&status, "status", 0, "show your friendship with this user id")
	return cmd
}

func friendStatusText(st client.FriendStatus) string {
	switch st {
	case client.Friends:
		return "Friends"
	case client.FriendPending:
		return "Request pending"
	}
	return "Not friends"
}
