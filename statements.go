package neoimport

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// Phase identifies a stage of the import pipeline.
type Phase string

const (
	ConstraintPhase   Phase = "constraints"
	NodePhase         Phase = "nodes"
	RelationshipPhase Phase = "relationships"
)

// FileRef names the statement parameter that holds a CSV file name.
type FileRef string

const (
	CustomersFile FileRef = "file_0"
	TransfersFile FileRef = "file_1"
	PurchasesFile FileRef = "file_2"
)

// Kind is the conversion applied to a CSV value before it is stored.
type Kind int

const (
	String Kind = iota
	Integer
	Float
)

// Field maps a CSV column onto a graph property.
type Field struct {
	Property string
	Column   string
	Kind     Kind
}

func field(name string, kind Kind) Field {
	return Field{Property: name, Column: name, Kind: kind}
}

// expr renders the Cypher expression reading the field from `row`. Numeric
// conversions yield null for values that do not parse.
func (f Field) expr() string {
	col := "row." + quote(f.Column)
	switch f.Kind {
	case Integer:
		return "toInteger(trim(" + col + "))"
	case Float:
		return "toFloat(trim(" + col + "))"
	default:
		return col
	}
}

// NodeSpec describes one node load: every row of File with a usable key
// becomes (or updates) a Label node.
type NodeSpec struct {
	Label string
	Key   Field
	File  FileRef
	Props []Field
	// Via disambiguates specs that load the same label from several files.
	Via string
}

// Endpoint is one side of a relationship, resolved by key.
type Endpoint struct {
	Label string
	Key   Field
}

// RelationshipSpec describes one relationship load.
type RelationshipSpec struct {
	Type   string
	File   FileRef
	Source Endpoint
	Target Endpoint
	Props  []Field
}

// ConstraintSpec is a uniqueness constraint on a label's key property.
type ConstraintSpec struct {
	Label string
	Key   string
}

// Name returns the constraint name used with IF NOT EXISTS.
func (c ConstraintSpec) Name() string {
	return "imp_uniq_" + c.Label + "_" + c.Key
}

// Cypher renders the create-if-absent statement.
func (c ConstraintSpec) Cypher() string {
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s IF NOT EXISTS\nFOR (n:%s)\nREQUIRE (n.%s) IS UNIQUE",
		quote(c.Name()), quote(c.Label), quote(c.Key),
	)
}

var (
	cif           = field("CIF", Integer)
	accountNumber = field("AccountNumber", String)
	transactionID = field("TransactionID", Integer)
	merchant      = field("Merchant", String)
	cardNumber    = field("CardNumber", String)
	amount        = field("Amount", Float)
)

// NodeSpecs lists the node loads in pipeline order.
var NodeSpecs = []NodeSpec{
	{
		Label: "Customer",
		Key:   cif,
		File:  CustomersFile,
		Props: []Field{
			field("Age", Integer),
			field("EmailAddress", String),
			field("FirstName", String),
			field("LastName", String),
			field("PhoneNumber", String),
			field("Gender", String),
			field("Address", String),
			field("Country", String),
			field("JobTitle", String),
		},
	},
	{Label: "Account", Key: accountNumber, File: CustomersFile},
	{Label: "Transaction", Key: transactionID, File: TransfersFile, Via: "FromTransfers"},
	{Label: "Transaction", Key: transactionID, File: PurchasesFile, Via: "FromPurchases"},
	{Label: "Merchant", Key: merchant, File: PurchasesFile},
	{
		Label: "Card",
		Key:   cardNumber,
		File:  PurchasesFile,
		Props: []Field{field("CardIssuer", String)},
	},
}

// RelationshipSpecs lists the relationship loads in pipeline order.
var RelationshipSpecs = []RelationshipSpec{
	{
		Type:   "HAS_ACCOUNT",
		File:   CustomersFile,
		Source: Endpoint{Label: "Customer", Key: cif},
		Target: Endpoint{Label: "Account", Key: accountNumber},
	},
	{
		Type:   "HAS_CARD",
		File:   CustomersFile,
		Source: Endpoint{Label: "Customer", Key: cif},
		Target: Endpoint{Label: "Card", Key: cardNumber},
	},
	{
		Type:   "SEND_TO",
		File:   TransfersFile,
		Source: Endpoint{Label: "Account", Key: Field{Property: "AccountNumber", Column: "SenderAccountNumber"}},
		Target: Endpoint{Label: "Transaction", Key: transactionID},
		Props:  []Field{amount, field("TransferDatetime", String)},
	},
	{
		Type:   "RECEIVED_IN",
		File:   TransfersFile,
		Source: Endpoint{Label: "Transaction", Key: transactionID},
		Target: Endpoint{Label: "Account", Key: Field{Property: "AccountNumber", Column: "ReceiverAccountNumber"}},
		Props:  []Field{amount, field("TransferDatetime", String)},
	},
	{
		Type:   "MADE_PURCHASE",
		File:   PurchasesFile,
		Source: Endpoint{Label: "Transaction", Key: transactionID},
		Target: Endpoint{Label: "Merchant", Key: merchant},
		Props:  []Field{amount, field("PurchaseDatetime", String)},
	},
	{
		Type:   "USED_CARD",
		File:   PurchasesFile,
		Source: Endpoint{Label: "Transaction", Key: transactionID},
		Target: Endpoint{Label: "Card", Key: cardNumber},
		Props:  []Field{amount, field("PurchaseDatetime", String)},
	},
}

// ConstraintSpecs returns one constraint per distinct node label, in the
// order labels first appear in [NodeSpecs].
func ConstraintSpecs() []ConstraintSpec {
	var specs []ConstraintSpec
	seen := map[string]bool{}
	for _, n := range NodeSpecs {
		if seen[n.Label] {
			continue
		}
		seen[n.Label] = true
		specs = append(specs, ConstraintSpec{Label: n.Label, Key: n.Key.Property})
	}
	return specs
}

// Statement is a single bulk operation sent to the database.
type Statement struct {
	Name   string
	Phase  Phase
	File   FileRef
	Cypher string
	// SkipCypher counts the rows Cypher filters out. Empty when the
	// statement does not filter.
	SkipCypher string
}

// NodeStatements renders [NodeSpecs] with the given rows per inner
// transaction.
func NodeStatements(batchSize int) []Statement {
	out := make([]Statement, len(NodeSpecs))
	for i, spec := range NodeSpecs {
		out[i] = spec.Statement(batchSize)
	}
	return out
}

// RelationshipStatements renders [RelationshipSpecs] with the given rows per
// inner transaction.
func RelationshipStatements(batchSize int) []Statement {
	out := make([]Statement, len(RelationshipSpecs))
	for i, spec := range RelationshipSpecs {
		out[i] = spec.Statement(batchSize)
	}
	return out
}

// Statement renders the MERGE statement for the node spec.
func (n NodeSpec) Statement(batchSize int) Statement {
	key := n.Key.expr()

	var b strings.Builder
	writeLoad(&b, n.File)
	fmt.Fprintf(&b, "WHERE NOT %s IS NULL\n", key)
	b.WriteString("CALL {\n  WITH row\n")
	fmt.Fprintf(&b, "  MERGE (n:%s {%s: %s})\n", quote(n.Label), quote(n.Key.Property), key)
	for _, p := range n.Props {
		fmt.Fprintf(&b, "  SET n.%s = %s\n", quote(p.Property), p.expr())
	}
	writeBatch(&b, batchSize)

	var skip strings.Builder
	writeLoad(&skip, n.File)
	fmt.Fprintf(&skip, "WHERE %s IS NULL\n", key)
	skip.WriteString("RETURN count(row) AS skipped")

	return Statement{
		Name:       strcase.ToSnake(n.Label + n.Via),
		Phase:      NodePhase,
		File:       n.File,
		Cypher:     b.String(),
		SkipCypher: skip.String(),
	}
}

// Statement renders the MERGE statement for the relationship spec. Rows whose
// endpoints do not resolve to existing nodes produce no relationship.
func (r RelationshipSpec) Statement(batchSize int) Statement {
	var b strings.Builder
	writeLoad(&b, r.File)
	b.WriteString("CALL {\n  WITH row\n")
	fmt.Fprintf(&b, "  MATCH (source:%s {%s: %s})\n", quote(r.Source.Label), quote(r.Source.Key.Property), r.Source.Key.expr())
	fmt.Fprintf(&b, "  MATCH (target:%s {%s: %s})\n", quote(r.Target.Label), quote(r.Target.Key.Property), r.Target.Key.expr())
	fmt.Fprintf(&b, "  MERGE (source)-[r:%s]->(target)\n", quote(r.Type))
	for _, p := range r.Props {
		fmt.Fprintf(&b, "  SET r.%s = %s\n", quote(p.Property), p.expr())
	}
	writeBatch(&b, batchSize)

	return Statement{
		Name:   strcase.ToSnake(r.Type),
		Phase:  RelationshipPhase,
		File:   r.File,
		Cypher: b.String(),
	}
}

func writeLoad(b *strings.Builder, file FileRef) {
	fmt.Fprintf(b, "LOAD CSV WITH HEADERS FROM ($file_path_root + $%s) AS row\nWITH row\n", file)
}

func writeBatch(b *strings.Builder, batchSize int) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	fmt.Fprintf(b, "} IN TRANSACTIONS OF %d ROWS", batchSize)
}

func quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
