package main

// Static content decks. Game logic never depends on the specific
// entries; tests construct their own.

type bufalaQuestion struct {
	Text   string
	Answer string
}

var bufalaQuestions = []bufalaQuestion{
	{"In a traditional Italian farmhouse, which room was built around the hearth?", "CUCINA"},
	{"What is the only mammal capable of true sustained flight?", "BAT"},
	{"Which planet in our solar system rotates on its side?", "URANUS"},
	{"What was the first food ever eaten in space?", "APPLESAUCE"},
	{"Which country invented the croissant?", "AUSTRIA"},
	{"What is a group of flamingos called?", "FLAMBOYANCE"},
	{"Which metal is liquid at room temperature besides mercury?", "GALLIUM"},
	{"What color is a polar bear's skin?", "BLACK"},
	{"Which instrument did Sherlock Holmes play?", "VIOLIN"},
	{"What is the national animal of Scotland?", "UNICORN"},
	{"Which fruit was once known as a 'love apple'?", "TOMATO"},
	{"What is the collective noun for a group of crows?", "MURDER"},
}

var trashPrompts = []string{
	"The worst possible name for a luxury perfume",
	"A terrible slogan for a funeral home",
	"The first thing you'd say after waking from a 100-year nap",
	"A rejected flavor of sports drink",
	"The worst thing to shout during a wedding",
	"A bad opening line for a job interview",
	"The least inspiring motivational poster",
	"A horrible theme for a birthday party",
	"The worst superpower imaginable",
	"A terrible name for a pet goldfish",
	"The most useless smartphone app",
	"A rejected title for a romance novel",
	"The worst advice to give a new parent",
	"A bad catchphrase for a superhero",
	"The least appetizing pizza topping",
	"A terrible password you'd actually remember",
}

var trashGhostLines = []string{
	"Boo. I guess.",
	"I died for this?",
	"No comment, I'm translucent.",
	"My answer passed away with me.",
	"Whatever the living one said, but spookier.",
}

type imposterPair struct {
	Word string
	Hint string
}

var imposterPairs = []imposterPair{
	{"PIZZA", "Food"},
	{"SUBMARINE", "Vehicle"},
	{"VOLCANO", "Place"},
	{"PENGUIN", "Animal"},
	{"GUITAR", "Object"},
	{"LIBRARY", "Place"},
	{"ASTRONAUT", "Job"},
	{"UMBRELLA", "Object"},
	{"CARNIVAL", "Event"},
	{"LIGHTHOUSE", "Building"},
	{"SPAGHETTI", "Food"},
	{"GLACIER", "Place"},
	{"MAGICIAN", "Job"},
	{"TREEHOUSE", "Building"},
}

var cyberBoard = []cyberTile{
	{Kind: tileStart, Name: "Launch Pad"},
	{Kind: tileProperty, Name: "Neon Alley", Group: "neon", Price: 60, Rent: 4},
	{Kind: tileProperty, Name: "Glow Market", Group: "neon", Price: 60, Rent: 4},
	{Kind: tileStation, Name: "North Loop Station", Price: 200, Rent: 25},
	{Kind: tileProperty, Name: "Circuit Row", Group: "neon", Price: 80, Rent: 6},
	{Kind: tileTax, Name: "Grid Toll", Price: 100},
	{Kind: tileFree, Name: "Data Park"},
	{Kind: tileProperty, Name: "Rust Docks", Group: "docks", Price: 100, Rent: 8},
	{Kind: tileUtility, Name: "Power Plant", Price: 150},
	{Kind: tileProperty, Name: "Cargo Bay", Group: "docks", Price: 100, Rent: 8},
	{Kind: tileStation, Name: "East Loop Station", Price: 200, Rent: 25},
	{Kind: tileProperty, Name: "Fog Pier", Group: "docks", Price: 120, Rent: 10},
	{Kind: tileFree, Name: "Junkyard"},
	{Kind: tileProperty, Name: "Chrome Heights", Group: "uptown", Price: 140, Rent: 12},
	{Kind: tileProperty, Name: "Skyline Terrace", Group: "uptown", Price: 140, Rent: 12},
	{Kind: tileStation, Name: "South Loop Station", Price: 200, Rent: 25},
	{Kind: tileProperty, Name: "Orbital Gardens", Group: "uptown", Price: 160, Rent: 14},
	{Kind: tileUtility, Name: "Water Works", Price: 150},
	{Kind: tileFree, Name: "Arcade Plaza"},
	{Kind: tileProperty, Name: "Quantum Quarter", Group: "grid", Price: 180, Rent: 16},
	{Kind: tileTax, Name: "Luxury Levy", Price: 150},
	{Kind: tileProperty, Name: "Hologram Square", Group: "grid", Price: 180, Rent: 16},
	{Kind: tileStation, Name: "West Loop Station", Price: 200, Rent: 25},
	{Kind: tileProperty, Name: "Core Tower", Group: "grid", Price: 200, Rent: 18},
}
