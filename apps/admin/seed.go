package main

import (
	"context"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/fact"
	"github.com/vigilsat/vigil/core/user"
)

const (
	seedAdminUsername   = "admin" // the API demo identity in development
	seedAdminEmail      = "admin@company.com"
	seedAdminPassword   = "admin123"
	seedAdminDepartment = "IT"
)

var seedFacts = []fact.NewFact{
	{
		Title:    "Phishing is the top attack vector",
		Content:  "Most breaches start with a phishing email. Check the sender address and hover over links before clicking.",
		Category: "phishing",
		Source:   "Verizon DBIR",
	},
	{
		Title:    "Length beats complexity",
		Content:  "A long passphrase is harder to crack than a short password full of symbols.",
		Category: "passwords",
		Source:   "NIST SP 800-63B",
	},
	{
		Title:    "Turn on multi-factor authentication",
		Content:  "MFA blocks the vast majority of automated account takeover attempts.",
		Category: "authentication",
	},
	{
		Title:    "Lock your screen",
		Content:  "Always lock your workstation when you step away, even for a minute.",
		Category: "physical",
	},
	{
		Title:    "Report suspicious activity",
		Content:  "Reporting a mistake early limits the damage. The security team would rather hear about a false alarm than miss a real incident.",
		Category: "general",
	},
}

// seed creates the default admin account and sample facts. It is safe to run more than once.
func (cli *commandLine) seed(ctx context.Context) error {
	if _, err := cli.usrSvc.GetByUsernameOrEmail(ctx, seedAdminUsername); err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Username:           seedAdminUsername,
			Email:              seedAdminEmail,
			Password:           seedAdminPassword,
			FirstName:          "System",
			LastName:           "Administrator",
			Department:         seedAdminDepartment,
			Role:               user.RoleAdmin,
			SkipPasswordPolicy: true,
		})
		if err != nil {
			return err
		}
		cli.printf("created admin user %q\n", seedAdminUsername)
	} else {
		cli.printf("admin user %q already exists\n", seedAdminUsername)
	}

	facts, err := cli.factSvc.List(ctx, "")
	if err != nil {
		return err
	}
	if len(facts) > 0 {
		cli.printf("%d security facts already exist\n", len(facts))
		return nil
	}
	for _, nf := range seedFacts {
		if _, err = cli.factSvc.Create(ctx, nf); err != nil {
			return err
		}
	}
	cli.printf("created %d security facts\n", len(seedFacts))
	return nil
}
