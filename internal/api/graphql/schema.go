package graphql

// schemaSDL is served at /graphql. Amounts are floats; dates are YYYY-MM-DD
// strings.
const schemaSDL = `
schema {
	query: Query
	mutation: Mutation
}

type User {
	_id: ID!
	username: String!
	name: String!
	profilePicture: String
	gender: String!
	# Only resolved for the authenticated user's own record.
	transactions: [Transaction!]
}

type Transaction {
	_id: ID!
	userId: ID!
	description: String!
	paymentType: String!
	category: String!
	amount: Float!
	location: String
	date: String!
	user: User!
}

type CategoryStatistics {
	category: String!
	totalAmount: Float!
}

type LogoutResponse {
	message: String!
}

input SignUpInput {
	username: String!
	name: String!
	password: String!
	gender: String!
	profilePicture: String
}

input LoginInput {
	username: String!
	password: String!
}

input CreateTransactionInput {
	description: String!
	paymentType: String!
	category: String!
	amount: Float!
	date: String!
	location: String
}

input UpdateTransactionInput {
	transactionId: ID!
	description: String
	paymentType: String
	category: String
	amount: Float
	location: String
	date: String
}

type Query {
	authUser: User
	user(userId: ID!): User
	transactions: [Transaction!]
	transaction(transactionId: ID!): Transaction
	categoryStatistics: [CategoryStatistics!]
}

type Mutation {
	signUp(input: SignUpInput!): User
	login(input: LoginInput!): User
	logout: LogoutResponse
	createTransaction(input: CreateTransactionInput!): Transaction!
	updateTransaction(input: UpdateTransactionInput!): Transaction!
	deleteTransaction(transactionId: ID!): Transaction!
}
`
