package round

import "strconv"

func runCue() Title {
	return Title{Title: "Run!", Color: Red, FadeIn: 0, Stay: 10, FadeOut: 5}
}

func countdownCue(seconds int) Title {
	return Title{
		Title:    strconv.Itoa(seconds),
		Subtitle: "Get ready",
		Color:    Green,
		FadeIn:   1,
		Stay:     20,
		FadeOut:  1,
	}
}

func interruptedCue() Title {
	return Title{
		Title:    "Preparation interrupted",
		Subtitle: "Waiting for other players to join",
		Color:    White,
		FadeIn:   5,
		Stay:     90,
		FadeOut:  5,
	}
}

func loseCue() Title {
	return Title{Title: "You lose", Color: Red, FadeIn: 1, Stay: 10, FadeOut: 8}
}

func wonCue() Title {
	return Title{Title: "You won!", Color: Green, FadeIn: 1, Stay: 70, FadeOut: 10}
}

func otherWonCue(name string) Title {
	return Title{Title: name + " won!", Color: Yellow, FadeIn: 1, Stay: 70, FadeOut: 10}
}

func drawCue() Title {
	return Title{Title: "Draw!", Color: Yellow, FadeIn: 1, Stay: 20, FadeOut: 10}
}
