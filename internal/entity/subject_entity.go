package entity

// Subject is owned by the backend; the client keeps only its id as a foreign
// key in the session store.
type Subject struct {
	Id         string
	Name       string
	Difficulty string
	Concepts   []string
}
