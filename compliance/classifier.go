package compliance

import (
	"fmt"
	"strings"

	"clausecheck-backend/models"
)

// RiskRule is one (category, severity) row of the keyword table
type RiskRule struct {
	Category string
	Severity string // lowercase: low, medium, high
	Score    int
	Keywords []string
}

const (
	compliantImpact     = "No regulatory exposure."
	compliantMitigation = "No action required."
	riskMitigation      = "Review and address compliance gap immediately."
)

var legalLow = []string{
	"data retention", "email consent", "basic disclosure", "cookie banner",
	"age verification", "opt-in form", "advertising guidelines", "copyright notice",
	"privacy notice", "employee conduct", "whistleblower", "training requirement",
	"website policy", "privacy shield", "standard contractual clause",
	"basic nda", "intellectual property marking", "brand usage",
	"simple contract clause", "minor compliance update",
}

var legalMedium = []string{
	"HIPAA", "SOX", "PCI DSS", "consumer protection", "cross-border data transfer",
	"sensitive personal data", "data subject rights", "informed consent",
	"retention limits", "audit obligation", "non-compete", "breach of contract",
	"export control", "AML (anti money laundering)", "licensing terms",
	"GDPR DPIA", "standard of care", "industry compliance", "governance policy",
	"harassment law",
}

var legalHigh = []string{
	"GDPR", "CCPA", "antitrust", "competition law", "bribery", "corruption",
	"criminal liability", "environmental violation", "trade secrets theft",
	"fraud", "FCPA", "money laundering", "sanctions violation", "terrorism financing",
	"child protection law", "discrimination", "illegal surveillance",
	"human rights violation", "genocide", "war crimes", "insider trading",
}

var financialLow = []string{
	"late payment", "small fines", "bank reconciliation", "reporting error",
	"clerical error", "budget overrun", "low-value transaction",
	"delayed invoice", "currency rounding", "operational fee",
	" petty cash", "minor audit finding", "tax filing delay",
	"mislabelled expense", "duplicate entry", "simple variance",
	"low materiality", "accounting correction", "vendor misreport",
	"invoice mismatch", "expense approval",
}

var financialMedium = []string{
	"tax evasion suspicion", "AML alert", "financial reporting",
	"capital adequacy", "unsecured loan", "medium-value fraud",
	"internal audit fail", "SOX non-compliance", "credit rating impact",
	"hedging loss", "currency risk", "insurance lapse", "payment system breach",
	"misrepresentation", "loan covenant breach", "fraudulent invoice",
	"deferred revenue issue", "derivatives misstatement", "suspicious transfer",
	"foreign exchange loss",
}

var financialHigh = []string{
	"money laundering", "securities fraud", "embezzlement", "bankruptcy",
	"Ponzi scheme", "financial crime", "tax fraud", "insider trading",
	"terrorist financing", "capital market manipulation", "bribery fund",
	"illegal investment scheme", "sanctions breach", "shadow banking",
	"large-scale fraud", "regulatory fine", "stock manipulation",
	"false accounting", "loan sharking", "crypto scam", "bond default",
}

var operationalLow = []string{
	"delayed delivery", "staff absence", "machine downtime",
	"workplace safety note", "minor IT outage", "low-value procurement",
	"non-critical defect", "small process gap", "customer complaint",
	"service delay", "shift absence", "supply hiccup", "reporting lag",
	"maintenance miss", "lost document", "email misrouting",
	"meeting delay", "training lapse", "manual error", "low priority backlog",
}

var operationalMedium = []string{
	"data breach", "service outage", "operational fraud",
	"cybersecurity gap", "vendor failure", "compliance gap",
	"medium downtime", "untrained staff", "supply chain risk",
	"system vulnerability", "policy violation", "unauthorized access",
	"payment delay", "fraud detection miss", "incomplete audit trail",
	"incorrect reporting", "KYC failure", "license lapse",
	"safety breach", "medium-scale disruption",
}

var operationalHigh = []string{
	"ransomware", "system hack", "major data breach",
	"identity theft", "critical infrastructure failure",
	"regulatory shutdown", "large-scale fraud",
	"supply chain collapse", "factory shutdown", "nation-state attack",
	"major service outage", "cyber espionage", "espionage",
	"unauthorized disclosure", "operational sabotage",
	"environmental spill", "toxic release", "industrial accident",
	"explosion", "mass casualty",
}

// RiskTable is scanned top to bottom and the first row with a matching keyword wins.
// Rows are ordered by severity (high first), then by score, then Legal, Financial, Operational.
var RiskTable = []RiskRule{
	{Category: models.CategoryFinancial, Severity: "high", Score: 10, Keywords: financialHigh},
	{Category: models.CategoryLegal, Severity: "high", Score: 9, Keywords: legalHigh},
	{Category: models.CategoryOperational, Severity: "high", Score: 9, Keywords: operationalHigh},
	{Category: models.CategoryLegal, Severity: "medium", Score: 6, Keywords: legalMedium},
	{Category: models.CategoryFinancial, Severity: "medium", Score: 6, Keywords: financialMedium},
	{Category: models.CategoryOperational, Severity: "medium", Score: 5, Keywords: operationalMedium},
	{Category: models.CategoryLegal, Severity: "low", Score: 3, Keywords: legalLow},
	{Category: models.CategoryFinancial, Severity: "low", Score: 2, Keywords: financialLow},
	{Category: models.CategoryOperational, Severity: "low", Score: 2, Keywords: operationalLow},
}

// Classifier converts verdicts into risk explanations using a keyword table
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	RiskRule
	lowered []string
}

// NewClassifier builds a classifier over the given table, or RiskTable when nil
func NewClassifier(table []RiskRule) *Classifier {
	if table == nil {
		table = RiskTable
	}
	c := &Classifier{rules: make([]compiledRule, 0, len(table))}
	for _, r := range table {
		lowered := make([]string, len(r.Keywords))
		for i, k := range r.Keywords {
			lowered[i] = strings.ToLower(k)
		}
		c.rules = append(c.rules, compiledRule{RiskRule: r, lowered: lowered})
	}
	return c
}

// NoRisk is the explanation attached to every compliant verdict
func NoRisk() *models.RiskExplanation {
	return &models.RiskExplanation{
		Severity:   models.SeverityNone,
		Category:   models.CategoryNone,
		RiskScore:  0,
		Impact:     compliantImpact,
		Mitigation: compliantMitigation,
	}
}

// ExplainRisk classifies a verdict. A nil result means the clause is
// non-compliant but no keyword matched; callers must not read it as compliant.
func (c *Classifier) ExplainRisk(verdict *models.Verdict) *models.RiskExplanation {
	if verdict == nil {
		return nil
	}
	if verdict.IsCompliant {
		return NoRisk()
	}

	texts := make([]string, 0, len(verdict.MatchedRules))
	for _, r := range verdict.MatchedRules {
		texts = append(texts, r.Rule)
	}
	blob := strings.ToLower(strings.Join(texts, " "))
	if blob == "" {
		return nil
	}

	for _, rule := range c.rules {
		for _, kw := range rule.lowered {
			if strings.Contains(blob, kw) {
				return &models.RiskExplanation{
					Severity:   strings.ToUpper(rule.Severity[:1]) + rule.Severity[1:],
					Category:   rule.Category,
					RiskScore:  rule.Score,
					Impact:     fmt.Sprintf("%s risk (%s) detected.", rule.Category, rule.Severity),
					Mitigation: riskMitigation,
				}
			}
		}
	}
	return nil
}

// ExplainAll classifies each verdict, keeping positions
func (c *Classifier) ExplainAll(verdicts []models.Verdict) []*models.RiskExplanation {
	out := make([]*models.RiskExplanation, len(verdicts))
	for i := range verdicts {
		out[i] = c.ExplainRisk(&verdicts[i])
	}
	return out
}
