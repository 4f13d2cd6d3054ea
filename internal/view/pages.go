// Package view renders the portal's pages with gomponents. There are only
// two top-level branches: the credential form (sign-in or sign-up mode) and
// the authenticated welcome card. Which branch renders is decided solely by
// session presence.
package view

import (
	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/outcome"
	"maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	"maragu.dev/gomponents/html"
)

// AuthData is the view model for the auth page.
type AuthData struct {
	Mode    outcome.Mode
	Email   string
	Flash   Flash
	Session domain.SessionState
}

// Base wraps page content in the HTML shell: Tailwind for styling, htmx with
// the websocket extension for live session updates.
func Base(title string, body ...gomponents.Node) gomponents.Node {
	return html.Doctype(
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(gomponents.Text(pageTitle(title))),
				html.Script(html.Src("https://cdn.tailwindcss.com")),
				html.Script(html.Src("https://unpkg.com/htmx.org@1.9.12"), html.Defer()),
				html.Script(html.Src("https://unpkg.com/htmx.org@1.9.12/dist/ext/ws.js"), html.Defer()),
			),
			html.Body(
				html.Class("bg-black text-white font-sans"),
				gomponents.Group(body),
			),
		),
	)
}

// pageTitle handles the conditional logic for the browser tab title.
func pageTitle(title string) string {
	if title != "" {
		return title + " - Acme Inc"
	}
	return "Acme Inc"
}

// AuthPage is the full two-column page: the brand panel on the left, the
// active branch on the right. The wrapper connects to the session socket so
// a session change re-renders the card without a reload.
func AuthPage(d AuthData) gomponents.Node {
	return html.Div(
		html.Class("w-full lg:grid lg:min-h-screen lg:grid-cols-2"),
		hx.Ext("ws"),
		gomponents.Attr("ws-connect", "/auth/ws"),
		brandPanel(),
		html.Div(
			html.Class("bg-black flex items-center justify-center p-8 min-h-screen"),
			AuthCard(d),
		),
	)
}

// AuthCard renders whichever branch the session state selects. Its id is the
// swap target for websocket-pushed re-renders.
func AuthCard(d AuthData) gomponents.Node {
	var branch gomponents.Node
	if d.Session.Present {
		branch = welcomeCard(d.Session)
	} else {
		branch = formCard(d)
	}
	return html.Div(
		html.ID("auth-card"),
		html.Class("mx-auto flex w-full flex-col justify-center space-y-6 sm:w-[350px]"),
		flashMessages(d.Flash),
		branch,
	)
}

// SessionFragment is the out-of-band fragment broadcast to connected pages
// when the mirrored session changes.
func SessionFragment(state domain.SessionState) gomponents.Node {
	d := AuthData{Mode: outcome.SignIn, Session: state}
	var branch gomponents.Node
	if state.Present {
		branch = welcomeCard(state)
	} else {
		branch = formCard(d)
	}
	return html.Div(
		html.ID("auth-card"),
		html.Class("mx-auto flex w-full flex-col justify-center space-y-6 sm:w-[350px]"),
		hx.SwapOOB("outerHTML:#auth-card"),
		branch,
	)
}

// CallbackRelay bridges the OAuth callback: the backend returns tokens in
// the URL fragment, which browsers never send to the server, so this page
// re-issues them as query parameters.
func CallbackRelay() gomponents.Node {
	return html.Div(
		html.Class("flex min-h-screen items-center justify-center"),
		html.P(html.Class("text-sm text-gray-400"), gomponents.Text("Signing you in…")),
		html.Script(gomponents.Raw(`(function () {
	var fragment = window.location.hash;
	if (fragment && fragment.length > 1) {
		window.location.replace("/auth/callback?" + fragment.substring(1));
	} else {
		window.location.replace("/login");
	}
})();`)),
	)
}

func brandPanel() gomponents.Node {
	return html.Div(
		html.Class("relative hidden h-full flex-col bg-zinc-950 p-10 text-white border-r border-zinc-800 lg:flex"),
		html.Div(
			html.Class("relative z-20 flex items-center text-lg font-medium"),
			logoIcon(),
			gomponents.Text("Acme Inc"),
		),
		html.Div(
			html.Class("relative z-20 mt-auto"),
			html.BlockQuote(
				html.Class("space-y-2"),
				html.P(
					html.Class("text-lg"),
					gomponents.Text("“This library has saved me countless hours of work and helped me deliver stunning designs to my clients faster than ever before.”"),
				),
				html.Footer(html.Class("text-sm"), gomponents.Text("Veepanshu Kasana")),
			),
		),
	)
}

func welcomeCard(state domain.SessionState) gomponents.Node {
	return html.Div(
		html.Class("flex flex-col space-y-4 text-center"),
		html.H1(
			html.Class("text-2xl font-semibold tracking-tight text-white"),
			gomponents.Text("Welcome back"),
		),
		html.P(
			html.Class("text-sm text-gray-400"),
			gomponents.Text("You are signed in as "+state.UserEmail+"."),
		),
		html.A(
			html.Href("/logout"),
			html.Class("inline-flex items-center justify-center rounded-md text-sm font-medium bg-blue-600 text-white hover:bg-blue-600/90 h-10 px-4 py-2 w-full"),
			gomponents.Text("Sign Out"),
		),
	)
}

func formCard(d AuthData) gomponents.Node {
	heading := "Welcome back"
	subtitle := "Enter your email below to sign in to your account"
	submitLabel := "Sign In with Email"
	toggleHref := "/signup"
	togglePrompt := "Need an account? Sign up"
	if d.Mode == outcome.SignUp {
		heading = "Create an account"
		subtitle = "Enter your email below to create your account"
		submitLabel = "Sign Up with Email"
		toggleHref = "/login"
		togglePrompt = "Already have an account? Sign in"
	}

	return gomponents.Group([]gomponents.Node{
		html.Div(
			html.Class("flex flex-col space-y-2 text-center"),
			html.H1(html.Class("text-2xl font-semibold tracking-tight text-white"), gomponents.Text(heading)),
			html.P(html.Class("text-sm text-gray-400"), gomponents.Text(subtitle)),
		),
		html.Div(
			html.Class("grid gap-6"),
			html.FormEl(
				html.Action("/auth/submit"),
				html.Method("post"),
				// Disable the submit control while the request is in
				// flight; the handler's singleflight guard is the
				// authoritative backstop.
				gomponents.Attr("onsubmit", "this.querySelector('button[type=submit]').disabled = true"),
				html.Div(
					html.Class("grid gap-2"),
					html.Input(html.Type("hidden"), html.Name("mode"), html.Value(string(d.Mode))),
					html.Div(
						html.Class("grid gap-1"),
						html.Label(
							html.For("email"),
							html.Class("text-sm font-medium leading-none text-gray-300"),
							gomponents.Text("Email"),
						),
						html.Input(
							html.ID("email"),
							html.Name("email"),
							html.Type("email"),
							html.Placeholder("name@example.com"),
							html.Value(d.Email),
							html.Required(),
							html.Class("flex h-10 w-full rounded-md border border-gray-700 bg-transparent px-3 py-2 text-sm text-white placeholder:text-gray-500"),
						),
					),
					html.Div(
						html.Class("grid gap-1"),
						html.Label(
							html.For("password"),
							html.Class("text-sm font-medium leading-none text-gray-300"),
							gomponents.Text("Password"),
						),
						html.Input(
							html.ID("password"),
							html.Name("password"),
							html.Type("password"),
							html.Required(),
							html.Class("flex h-10 w-full rounded-md border border-gray-700 bg-transparent px-3 py-2 text-sm text-white"),
						),
					),
					html.Button(
						html.Type("submit"),
						html.Class("inline-flex items-center justify-center rounded-md text-sm font-medium disabled:pointer-events-none disabled:opacity-50 bg-blue-600 text-white hover:bg-blue-600/90 h-10 px-4 py-2 w-full mt-2"),
						gomponents.Text(submitLabel),
					),
				),
			),
			orDivider(),
			html.A(
				html.Href("/auth/oauth/github"),
				html.Class("inline-flex items-center justify-center rounded-md text-sm font-medium border border-gray-800 text-white bg-transparent hover:bg-gray-900 h-10 px-4 py-2 w-full"),
				gitHubIcon(),
				gomponents.Text("GitHub"),
			),
		),
		html.P(
			html.Class("px-8 text-center text-sm text-gray-400"),
			html.A(
				html.Href(toggleHref),
				html.Class("underline underline-offset-4 hover:text-gray-200"),
				gomponents.Text(togglePrompt),
			),
		),
		termsFooter(),
	})
}

// flashMessages renders pending outcome text inline: informational messages
// in a calm tone, hard failures in red. The user can always retry
// immediately; nothing here interrupts the form.
func flashMessages(f Flash) gomponents.Node {
	if len(f.Info) == 0 && len(f.Error) == 0 {
		return nil
	}
	nodes := make([]gomponents.Node, 0, len(f.Info)+len(f.Error))
	for _, msg := range f.Info {
		nodes = append(nodes, html.P(
			html.Class("rounded-md border border-blue-900 bg-blue-950/40 px-3 py-2 text-sm text-blue-300 text-center"),
			gomponents.Text(msg),
		))
	}
	for _, msg := range f.Error {
		nodes = append(nodes, html.P(
			html.Class("rounded-md border border-red-900 bg-red-950/40 px-3 py-2 text-sm text-red-300 text-center"),
			gomponents.Text(msg),
		))
	}
	return html.Div(html.Class("grid gap-2"), gomponents.Group(nodes))
}

func orDivider() gomponents.Node {
	return html.Div(
		html.Class("relative"),
		html.Div(
			html.Class("absolute inset-0 flex items-center"),
			html.Span(html.Class("w-full border-t border-gray-800")),
		),
		html.Div(
			html.Class("relative flex justify-center text-xs uppercase"),
			html.Span(html.Class("bg-black px-2 text-gray-400"), gomponents.Text("Or continue with")),
		),
	)
}

func termsFooter() gomponents.Node {
	return html.P(
		html.Class("px-8 text-center text-sm text-gray-400"),
		gomponents.Text("By clicking continue, you agree to our "),
		html.A(html.Href("#"), html.Class("underline underline-offset-4 hover:text-gray-200"), gomponents.Text("Terms of Service")),
		gomponents.Text(" and "),
		html.A(html.Href("#"), html.Class("underline underline-offset-4 hover:text-gray-200"), gomponents.Text("Privacy Policy")),
		gomponents.Text("."),
	)
}

func logoIcon() gomponents.Node {
	return gomponents.Raw(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round" class="h-6 w-6 mr-2"><path d="M15 6v12a3 3 0 1 0 3-3H6a3 3 0 1 0 3 3V6a3 3 0 1 0-3 3h12a3 3 0 1 0-3-3"/></svg>`)
}

func gitHubIcon() gomponents.Node {
	return gomponents.Raw(`<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round" class="mr-2 h-4 w-4"><path d="M15 22v-4a4.8 4.8 0 0 0-1-3.5c3 0 6-2 6-5.5.08-1.25-.27-2.48-1-3.5.28-1.15.28-2.35 0-3.5 0 0-1 0-3 1.5-2.64-.5-5.36-.5-8 0C6 2 5 2 5 2c-.3 1.15-.3 2.35 0 3.5A5.403 5.403 0 0 0 4 9c0 3.5 3 5.5 6 5.5-.39.49-.68 1.05-.85 1.65-.17.6-.22 1.23-.15 1.85v4"/><path d="M9 18c-4.51 2-5-2-7-2"/></svg>`)
}
