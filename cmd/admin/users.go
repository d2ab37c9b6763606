package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"folioforge/internal/credits"
)

func newCreateAdminCmd(flags *dbFlags) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "创建初始管理员账号，首次登录需强制改密",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(username) == "" {
				return errors.New("missing required flag: --username")
			}
			_, svc, err := flags.open()
			if err != nil {
				return err
			}
			user, password, err := svc.CreateAdmin(cmd.Context(), username)
			if err != nil {
				return errors.Wrapf(err, "create admin %q", username)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "已创建初始管理员账号（首次登录需强制改密）：\n")
			fmt.Fprintf(out, "用户名: %s\n", user.Username)
			fmt.Fprintf(out, "初始密码: %s\n", password)
			fmt.Fprintf(out, "提示：请立即登录并修改密码（该密码仅显示一次）。\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "管理员用户名（必填）")
	return cmd
}

func newGrantCreditsCmd(flags *dbFlags) *cobra.Command {
	var (
		username string
		amount   int
		note     string
	)
	cmd := &cobra.Command{
		Use:   "grant-credits",
		Short: "为用户发放积分并写入流水",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if amount <= 0 {
				return errors.New("--amount must be positive")
			}
			db, svc, err := flags.open()
			if err != nil {
				return err
			}
			user, err := svc.FindUser(cmd.Context(), username)
			if err != nil {
				return errors.Wrapf(err, "find user %q", username)
			}
			ref := "cli"
			if note != "" {
				ref += ":" + note
			}
			balance, err := credits.NewService(db).Grant(cmd.Context(), user.ID, amount, credits.ReasonAdminGrant, ref)
			if err != nil {
				return errors.Wrap(err, "grant credits")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: +%d, balance %d\n", user.Username, amount, balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "用户名（必填）")
	cmd.Flags().IntVar(&amount, "amount", 0, "发放数量")
	cmd.Flags().StringVar(&note, "note", "", "备注，写入流水 ref")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newSetPlanCmd(flags *dbFlags) *cobra.Command {
	var username, plan string
	cmd := &cobra.Command{
		Use:   "set-plan",
		Short: "修改用户套餐（free、pro、lifetime）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := flags.open()
			if err != nil {
				return err
			}
			user, err := svc.FindUser(cmd.Context(), username)
			if err != nil {
				return errors.Wrapf(err, "find user %q", username)
			}
			applied, err := svc.SetPlan(cmd.Context(), user.ID, plan)
			if err != nil {
				return errors.Wrap(err, "set plan")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: plan %s\n", user.Username, applied)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "用户名（必填）")
	cmd.Flags().StringVar(&plan, "plan", "", "目标套餐（必填）")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}
