package chaperone

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var eightBallAnswers = []string{
	"It is certain.",
	"Without a doubt.",
	"Yes, definitely.",
	"Most likely.",
	"Outlook good.",
	"Signs point to yes.",
	"Reply hazy, try again.",
	"Ask again later.",
	"Better not tell you now.",
	"Cannot predict now.",
	"Don't count on it.",
	"My reply is no.",
	"My sources say no.",
	"Outlook not so good.",
	"Very doubtful.",
}

var funFacts = []string{
	"Honey never spoils. Archaeologists have found edible honey in " +
		"ancient Egyptian tombs.",
	"Octopuses have three hearts and blue blood.",
	"A group of flamingos is called a flamboyance.",
	"Bananas are berries, but strawberries aren't.",
	"The Eiffel Tower grows about 15 cm taller in summer.",
	"Wombat droppings are cube shaped.",
	"There are more possible chess games than atoms in the observable " +
		"universe.",
	"A day on Venus is longer than its year.",
}

var jokes = []string{
	"Why do programmers prefer dark mode? Because light attracts bugs.",
	"I told my computer I needed a break, and now it won't stop sending " +
		"me Kit-Kats.",
	"Why did the scarecrow win an award? He was outstanding in his field.",
	"There are only 10 kinds of people: those who understand binary and " +
		"those who don't.",
	"Why don't skeletons fight each other? They don't have the guts.",
	"A SQL query walks into a bar, walks up to two tables and asks: " +
		"\"Can I join you?\"",
}

var rpsChoices = []string{"rock", "paper", "scissors"}

func funCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdCoinflip,
			Description: "Flip a coin",
		},
		{
			Name:        cmdRoll,
			Description: "Roll dice",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "sides",
					Description: "Number of sides (default 6)",
					MinValue:    float64Ptr(2),
					MaxValue:    1000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "Number of dice (default 1)",
					MinValue:    float64Ptr(1),
					MaxValue:    20,
				},
			},
		},
		{
			Name:        cmdEightBall,
			Description: "Ask the magic 8-ball",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Your yes/no question",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdRPS,
			Description: "Play rock, paper, scissors against the bot",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "choice",
					Description: "Your move",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "rock", Value: "rock"},
						{Name: "paper", Value: "paper"},
						{Name: "scissors", Value: "scissors"},
					},
				},
			},
		},
		{
			Name:        cmdFact,
			Description: "Get a random fact",
		},
		{
			Name:        cmdJoke,
			Description: "Get a random joke",
		},
	}
}

func (c *Chaperone) cmdCoinflip(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	result := "Heads"
	if rand.Intn(2) == 1 {
		result = "Tails"
	}
	c.respondText(i, fmt.Sprintf("\U0001FA99 %s!", result), false)
}

func (c *Chaperone) cmdRoll(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	sides := int(opts.integer("sides"))
	if sides < 2 {
		sides = 6
	}
	count := int(opts.integer("count"))
	if count < 1 {
		count = 1
	}
	rolls := make([]string, count)
	total := 0
	for n := range rolls {
		roll := rand.Intn(sides) + 1
		total += roll
		rolls[n] = fmt.Sprintf("%d", roll)
	}
	msg := fmt.Sprintf("\U0001F3B2 Rolled %dd%d: %s",
		count, sides, strings.Join(rolls, ", "))
	if count > 1 {
		msg += fmt.Sprintf(" (total %d)", total)
	}
	c.respondText(i, msg, false)
}

func (c *Chaperone) cmdEightBall(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	answer := eightBallAnswers[rand.Intn(len(eightBallAnswers))]
	c.respondEmbed(
		i, &discordgo.MessageEmbed{
			Title:       "\U0001F3B1 Magic 8-Ball",
			Description: answer,
			Color:       embedColorNotice,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Question", Value: opts.str("question")},
			},
		},
	)
}

func (c *Chaperone) cmdRPS(
	_ context.Context,
	i *discordgo.InteractionCreate,
	opts optionMap,
) {
	player := opts.str("choice")
	bot := rpsChoices[rand.Intn(len(rpsChoices))]

	var outcome string
	switch {
	case player == bot:
		outcome = "It's a tie!"
	case player == "rock" && bot == "scissors",
		player == "paper" && bot == "rock",
		player == "scissors" && bot == "paper":
		outcome = "You win!"
	default:
		outcome = "I win!"
	}
	c.respondText(
		i, fmt.Sprintf(
			"You chose %s, I chose %s. %s", player, bot, outcome,
		), false,
	)
}

func (c *Chaperone) cmdFact(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	c.respondText(i, funFacts[rand.Intn(len(funFacts))], false)
}

func (c *Chaperone) cmdJoke(
	_ context.Context,
	i *discordgo.InteractionCreate,
	_ optionMap,
) {
	c.respondText(i, jokes[rand.Intn(len(jokes))], false)
}
