package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

// maxPromptCollisions caps the collision lines printed before the prompt.
const maxPromptCollisions = 20

// PromptResolver asks an operator on in/out how to handle SKU collisions.
// An empty answer keeps the automatic replace policy; end of input aborts.
func PromptResolver(in io.Reader, out io.Writer) reconcile.CollisionResolver {
	scanner := bufio.NewScanner(in)
	return reconcile.ResolverFunc(func(ctx context.Context, collisions []reconcile.Collision) (reconcile.Decision, error) {
		fmt.Fprintf(out, "%d SKU collisions found in the catalog:\n", len(collisions))
		for i, c := range collisions {
			if i == maxPromptCollisions {
				fmt.Fprintf(out, "  ... and %d more\n", len(collisions)-i)
				break
			}
			fmt.Fprintf(out, "  %-20s %q (id %d) -> %q (id %d)\n",
				c.SKU, c.Previous.Name, c.Previous.ExternalID, c.Current.Name, c.Current.ExternalID)
		}

		for {
			if err := ctx.Err(); err != nil {
				return reconcile.Abort, err
			}
			fmt.Fprint(out, "[r]eplace existing, [i]gnore new, [a]bort? [r] ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return reconcile.Abort, err
				}
				return reconcile.Abort, nil
			}
			switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
			case "", "r", "replace":
				return reconcile.ReplaceExisting, nil
			case "i", "ignore":
				return reconcile.IgnoreNew, nil
			case "a", "abort":
				return reconcile.Abort, nil
			}
		}
	})
}
