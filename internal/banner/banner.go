package banner

import "fmt"

const Version = "1.0.0"

// Print writes the startup banner for the named process.
func Print(process string) {
	banner := `
    ______                               ____
   / ____/___  ___  _________ ___  __   / __ \__  _____  __  _____
  / __/ / __ \/ _ \/ ___/ __ '/ / / /  / / / / / / / _ \/ / / / _ \
 / /___/ / / /  __/ /  / /_/ / /_/ /  / /_/ / /_/ /  __/ /_/ /  __/
/_____/_/ /_/\___/_/   \__, /\__, /   \___\_\__,_/\___/\__,_/\___/
                      /____//____/  v%s - %s
    `
	fmt.Printf(banner, Version, process)
	fmt.Println("\n------------------------------------------------")
}
