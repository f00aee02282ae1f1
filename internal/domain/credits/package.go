package credits

import "github.com/shopspring/decimal"

// PackageID identifies a purchasable credit package
type PackageID string

const (
	PackageStarter      PackageID = "starter"
	PackageProfessional PackageID = "professional"
	PackageEnterprise   PackageID = "enterprise"
)

// IsValid checks if the package ID is one of the sellable packages
func (p PackageID) IsValid() bool {
	switch p {
	case PackageStarter, PackageProfessional, PackageEnterprise:
		return true
	}
	return false
}

// Package describes a purchasable bundle of credits. The catalog lives
// server-side only; client-supplied amounts or prices are never trusted.
type Package struct {
	ID         PackageID
	Name       string
	Credits    int64
	PriceCents int64
	Currency   string
	Popular    bool
}

// Price returns the package price as a decimal dollar amount
func (p Package) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

// packageCatalog is the authoritative package table. Checkout resolves
// credit amounts and prices from here by package ID alone.
var packageCatalog = map[PackageID]Package{
	PackageStarter: {
		ID:         PackageStarter,
		Name:       "Starter",
		Credits:    500,
		PriceCents: 500,
		Currency:   "usd",
	},
	PackageProfessional: {
		ID:         PackageProfessional,
		Name:       "Professional",
		Credits:    1000,
		PriceCents: 900,
		Currency:   "usd",
		Popular:    true,
	},
	PackageEnterprise: {
		ID:         PackageEnterprise,
		Name:       "Enterprise",
		Credits:    2500,
		PriceCents: 2000,
		Currency:   "usd",
	},
}

// PackageByID resolves a package from the server-side catalog
func PackageByID(id PackageID) (Package, bool) {
	pkg, ok := packageCatalog[id]
	return pkg, ok
}

// Packages returns the full catalog in display order
func Packages() []Package {
	return []Package{
		packageCatalog[PackageStarter],
		packageCatalog[PackageProfessional],
		packageCatalog[PackageEnterprise],
	}
}

// Action is a billable operation on the platform
type Action string

const (
	ActionGenerate Action = "generate"
	ActionEnhance  Action = "enhance"
	ActionCreate   Action = "create"
	ActionDeploy   Action = "deploy"
)

// IsValid checks if the action is a known billable action
func (a Action) IsValid() bool {
	switch a {
	case ActionGenerate, ActionEnhance, ActionCreate, ActionDeploy:
		return true
	}
	return false
}

// actionCosts maps each billable action to its credit cost. Costs are
// fixed server-side; clients never send amounts.
var actionCosts = map[Action]int64{
	ActionGenerate: 15,
	ActionEnhance:  10,
	ActionCreate:   5,
	ActionDeploy:   20,
}

// ActionCost returns the credit cost of a billable action
func ActionCost(action Action) (int64, bool) {
	cost, ok := actionCosts[action]
	return cost, ok
}
