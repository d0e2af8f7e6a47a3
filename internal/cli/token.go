package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittowopi/pkg/auth"
	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/discovery"
)

// TokenInfo is printed by the token command. AccessTokenTTL is the expiry
// in milliseconds since the epoch, as WOPI clients expect it.
type TokenInfo struct {
	FileID         string `json:"file_id"`
	AccessToken    string `json:"access_token"`
	AccessTokenTTL int64  `json:"access_token_ttl"`
	WOPISrc        string `json:"wopi_src,omitempty"`
}

type tokenOptions struct {
	user      string
	userName  string
	container string
	host      string
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token <file-id>",
		Short: "Mint an access token for a file",
		Long: `Mint an access token for a file, signed with auth.secret.

With --host the WOPISrc the WOPI client should be given is printed too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			info, err := runToken(cfg, args[0], opts)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "access_token=%s\n", info.AccessToken)
			fmt.Fprintf(out, "access_token_ttl=%d\n", info.AccessTokenTTL)
			if info.WOPISrc != "" {
				fmt.Fprintf(out, "WOPISrc=%s\n", url.QueryEscape(info.WOPISrc))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user id (default: host.default_user_id)")
	cmd.Flags().StringVar(&opts.userName, "user-name", "", "user display name")
	cmd.Flags().StringVar(&opts.container, "container", "", "content container of the file")
	cmd.Flags().StringVar(&opts.host, "host", "", "public host[:port] of this WOPI host")

	return cmd
}

func runToken(cfg *config.Config, fileID string, opts *tokenOptions) (TokenInfo, error) {
	issuer, err := config.CreateIssuer(cfg.Auth)
	if err != nil {
		return TokenInfo{}, err
	}

	fileID = strings.ToLower(strings.TrimSpace(fileID))
	user := opts.user
	if user == "" {
		user = cfg.Host.DefaultUserID
	}
	userName := opts.userName
	if userName == "" {
		userName = cfg.Host.DefaultUserName
	}

	token, expires, err := issuer.Issue(auth.Grant{
		UserID:    user,
		UserName:  userName,
		FileID:    fileID,
		Container: opts.container,
	})
	if err != nil {
		return TokenInfo{}, err
	}

	info := TokenInfo{
		FileID:         fileID,
		AccessToken:    token,
		AccessTokenTTL: expires.UnixMilli(),
	}
	if opts.host != "" {
		info.WOPISrc = discovery.WOPISrc(opts.host, fileID)
	}
	return info, nil
}
